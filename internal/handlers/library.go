package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tendant/simple-content-conversions/internal/library"
	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// MediaLibrary keeps media records of owner collections
type MediaLibrary interface {
	AddMedia(ctx context.Context, media pipeline.Media) (*manipulator.Report, error)
	UpdateMedia(ctx context.Context, owner pipeline.Owner, collection string, items []library.UpdateItem) ([]pipeline.Media, error)
	DeleteMedia(ctx context.Context, owner pipeline.Owner, id string) error
	ClearMediaCollection(ctx context.Context, owner pipeline.Owner, collection string) error
}

func (h *Handlers) registerLibraryRoutes(r *mux.Router) {
	const owner = "/v1/owners/{type}/{owner}"

	r.HandleFunc("/v1/media", h.AddMedia).Methods("POST")
	r.HandleFunc(owner+"/collections/{collection}", h.UpdateMedia).Methods("PUT")
	r.HandleFunc(owner+"/collections/{collection}", h.ClearMediaCollection).Methods("DELETE")
	r.HandleFunc(owner+"/media/{id}", h.DeleteMedia).Methods("DELETE")
}

func ownerFromVars(r *http.Request) pipeline.Owner {
	vars := mux.Vars(r)
	return pipeline.Owner{Type: vars["type"], ID: vars["owner"]}
}

// AddMedia handles POST /v1/media
func (h *Handlers) AddMedia(w http.ResponseWriter, r *http.Request) {
	var media pipeline.Media
	if err := json.NewDecoder(r.Body).Decode(&media); err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if media.FileName == "" {
		writeJSONError(w, "file_name is required", http.StatusBadRequest)
		return
	}

	report, err := h.library.AddMedia(r.Context(), media)
	if err != nil {
		h.logger.Error("failed to add media", "media_id", media.ID, "error", err)
		writeJSONError(w, fmt.Sprintf("Failed to add media: %v", err), http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if len(report.Queued) > 0 {
		status = http.StatusAccepted
	}
	writeJSON(w, status, report.Response())
}

// UpdateMedia handles PUT /v1/owners/{type}/{owner}/collections/{collection}
func (h *Handlers) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	var items []library.UpdateItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	updated, err := h.library.UpdateMedia(r.Context(), ownerFromVars(r), mux.Vars(r)["collection"], items)
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	if updated == nil {
		updated = []pipeline.Media{}
	}
	writeJSON(w, http.StatusOK, updated)
}

// ClearMediaCollection handles DELETE /v1/owners/{type}/{owner}/collections/{collection}
func (h *Handlers) ClearMediaCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.library.ClearMediaCollection(r.Context(), ownerFromVars(r), mux.Vars(r)["collection"]); err != nil {
		h.writeLibraryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMedia handles DELETE /v1/owners/{type}/{owner}/media/{id}
func (h *Handlers) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := h.library.DeleteMedia(r.Context(), ownerFromVars(r), mux.Vars(r)["id"]); err != nil {
		h.writeLibraryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeLibraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrMediaNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, library.ErrMediaCannotBeUpdated), errors.Is(err, library.ErrMediaCannotBeDeleted):
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("media library operation failed", "error", err)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}
