package conversion

import (
	"fmt"
	"sync"

	"github.com/tendant/simple-content-conversions/internal/manipulation"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Collection is an ordered set of conversions
type Collection []*Conversion

// Partition splits the conversions that apply to collectionName by their
// queued flag, preserving order
func (cc Collection) Partition(collectionName string) (nonQueued, queued Collection) {
	for _, c := range cc {
		if !c.ShouldBePerformedOn(collectionName) {
			continue
		}
		if c.IsQueued() {
			queued = append(queued, c)
		} else {
			nonQueued = append(nonQueued, c)
		}
	}
	return nonQueued, queued
}

// NonQueued returns the synchronous conversions for collectionName
func (cc Collection) NonQueued(collectionName string) Collection {
	nonQueued, _ := cc.Partition(collectionName)
	return nonQueued
}

// Queued returns the deferred conversions for collectionName
func (cc Collection) Queued(collectionName string) Collection {
	_, queued := cc.Partition(collectionName)
	return queued
}

// ByName returns the conversion with the given name
func (cc Collection) ByName(name string) (*Conversion, error) {
	for _, c := range cc {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrConversionNotFound, name)
}

// Names returns the conversion names in order
func (cc Collection) Names() []string {
	names := make([]string, 0, len(cc))
	for _, c := range cc {
		names = append(names, c.Name())
	}
	return names
}

// Specs converts the collection to wire form
func (cc Collection) Specs() []pipeline.ConversionSpec {
	specs := make([]pipeline.ConversionSpec, 0, len(cc))
	for _, c := range cc {
		specs = append(specs, c.Spec())
	}
	return specs
}

// CollectionFromSpecs rebuilds a collection from wire form
func CollectionFromSpecs(specs []pipeline.ConversionSpec) Collection {
	out := make(Collection, 0, len(specs))
	for _, s := range specs {
		out = append(out, FromSpec(s))
	}
	return out
}

// Registry holds the conversions declared for named collections, in
// declaration order
type Registry struct {
	mu          sync.RWMutex
	conversions []*Conversion
}

// NewRegistry creates a registry with the given conversions
func NewRegistry(conversions ...*Conversion) (*Registry, error) {
	r := &Registry{}
	for _, c := range conversions {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a conversion. Names must be unique within every collection the
// conversion applies to.
func (r *Registry) Register(c *Conversion) error {
	if c == nil || c.Name() == "" {
		return fmt.Errorf("%w: conversion name is required", ErrInvalidConversion)
	}
	if err := manipulation.Validate(c.manipulations); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConversion, c.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.conversions {
		if existing.Name() == c.Name() && overlaps(existing, c) {
			return fmt.Errorf("%w: %s", ErrDuplicateConversion, c.Name())
		}
	}
	r.conversions = append(r.conversions, c)
	return nil
}

// All returns every registered conversion
func (r *Registry) All() Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Collection, len(r.conversions))
	copy(out, r.conversions)
	return out
}

// ForCollection returns the conversions bound to the collection, wildcard
// bindings included, in declaration order
func (r *Registry) ForCollection(name string) Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out Collection
	for _, c := range r.conversions {
		if c.ShouldBePerformedOn(name) {
			out = append(out, c)
		}
	}
	return out
}

// ForMedia resolves the conversions for the media's collection. Manipulations
// stored on the media for a conversion are appended to a copy of it.
func (r *Registry) ForMedia(media pipeline.Media) Collection {
	base := r.ForCollection(media.CollectionName)
	if len(media.Manipulations) == 0 {
		return base
	}
	out := make(Collection, 0, len(base))
	for _, c := range base {
		extra, ok := media.Manipulations[c.Name()]
		if !ok || len(extra) == 0 {
			out = append(out, c)
			continue
		}
		out = append(out, c.withExtra(manipulation.PipelineFromSpecs(extra)))
	}
	return out
}

func overlaps(a, b *Conversion) bool {
	if len(a.collections) == 0 || len(b.collections) == 0 {
		return true
	}
	for _, x := range a.collections {
		if x == pipeline.AllCollections {
			return true
		}
		for _, y := range b.collections {
			if y == pipeline.AllCollections || x == y {
				return true
			}
		}
	}
	return false
}
