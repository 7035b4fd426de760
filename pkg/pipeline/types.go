package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// JobSchemaVersion is the version of the ConversionJob payload written by the
// enqueue side. Workers reject payloads with a version they do not know.
const JobSchemaVersion = 1

// ErrUnsupportedSchemaVersion is returned when a job payload was written with
// an unknown schema version
var ErrUnsupportedSchemaVersion = errors.New("unsupported job schema version")

// Owner identifies the entity a media item is attached to
type Owner struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Media identifies a source file and the collection it belongs to
type Media struct {
	ID               string                        `json:"id"`
	Disk             string                        `json:"disk"`
	FileName         string                        `json:"file_name"`
	Ext              string                        `json:"extension,omitempty"`
	Size             int64                         `json:"size"`
	CollectionName   string                        `json:"collection_name"`
	Owner            Owner                         `json:"owner"`
	Name             string                        `json:"name,omitempty"`
	Order            int                           `json:"order,omitempty"`
	CustomProperties map[string]any                `json:"custom_properties,omitempty"`
	Manipulations    map[string][]ManipulationSpec `json:"manipulations,omitempty"`
}

// Extension returns the lower-case extension of the media file without the dot
func (m Media) Extension() string {
	ext := m.Ext
	if ext == "" {
		ext = filepath.Ext(m.FileName)
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// HasCustomProperty reports whether the property is set on the media
func (m Media) HasCustomProperty(name string) bool {
	_, ok := m.CustomProperties[name]
	return ok
}

// CustomProperty returns the property value or def when it is not set
func (m Media) CustomProperty(name string, def any) any {
	if v, ok := m.CustomProperties[name]; ok {
		return v
	}
	return def
}

// SetCustomProperty sets a custom property, allocating the map if needed
func (m *Media) SetCustomProperty(name string, value any) {
	if m.CustomProperties == nil {
		m.CustomProperties = make(map[string]any)
	}
	m.CustomProperties[name] = value
}

// RemoveCustomProperty deletes a custom property if present
func (m *Media) RemoveCustomProperty(name string) {
	delete(m.CustomProperties, name)
}

// ManipulationSpec is the wire form of a single manipulation step
type ManipulationSpec struct {
	Operation  string            `json:"operation" toml:"operation"`
	Parameters map[string]string `json:"parameters,omitempty" toml:"parameters"`
}

// ConversionSpec is the wire form of a conversion
type ConversionSpec struct {
	Name             string             `json:"name"`
	Manipulations    []ManipulationSpec `json:"manipulations"`
	Queued           bool               `json:"queued"`
	Collections      []string           `json:"collections,omitempty"`
	PDFPage          int                `json:"pdf_page,omitempty"`
	VideoFrameSecond *float64           `json:"video_frame_second,omitempty"`
	Responsive       bool               `json:"responsive,omitempty"`
}

// ConversionJob is the self-contained payload of a deferred conversion run.
// It is shared by the enqueue side and the worker side.
type ConversionJob struct {
	SchemaVersion int              `json:"schema_version"`
	Media         Media            `json:"media"`
	Conversions   []ConversionSpec `json:"conversions"`
	Queue         string           `json:"queue,omitempty"`
	QueuedAt      time.Time        `json:"queued_at"`
}

// NewConversionJob builds a job payload at the current schema version
func NewConversionJob(media Media, conversions []ConversionSpec) ConversionJob {
	return ConversionJob{
		SchemaVersion: JobSchemaVersion,
		Media:         media,
		Conversions:   conversions,
		QueuedAt:      time.Now().UTC(),
	}
}

// Validate checks that the job can be executed by this version of the worker
func (j ConversionJob) Validate() error {
	if j.SchemaVersion != JobSchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedSchemaVersion, j.SchemaVersion)
	}
	if j.Media.ID == "" {
		return errors.New("job media id is required")
	}
	return nil
}

// DerivedFile describes an artifact produced by a conversion
type DerivedFile struct {
	ConversionName string `json:"conversion_name"`
	Extension      string `json:"extension"`
}

// FileName returns the stored file name of the derived file
func (d DerivedFile) FileName() string {
	if d.Extension == "" {
		return d.ConversionName
	}
	return d.ConversionName + "." + d.Extension
}

// DerivedFilesResponse is returned when derived file generation is triggered
type DerivedFilesResponse struct {
	RunID     string        `json:"run_id"`
	MediaID   string        `json:"media_id"`
	Completed []DerivedFile `json:"completed"`
	Queued    []string      `json:"queued"`
	JobID     string        `json:"job_id,omitempty"`
}

// ErrJobNotFound is returned when a job id is unknown to the queue backend
var ErrJobNotFound = errors.New("job not found")

// Job states reported by JobStatus
const (
	JobPending = "PENDING"
	JobRunning = "RUNNING"
	JobFailed  = "FAILED"
)

// JobStatus is the queue-backend independent state of a queued job
type JobStatus struct {
	ID        string    `json:"id"`
	Queue     string    `json:"queue,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Event kinds published by the pipeline
const (
	EventConversionCompleted = "conversion.completed"
	EventCollectionCleared   = "collection.cleared"
	EventMediaDeleted        = "media.deleted"
)

// Wildcard collection name binding a conversion to every collection
const AllCollections = "*"
