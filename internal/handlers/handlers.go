// Package handlers exposes the conversion pipeline over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-content-conversions/internal/conversion"
	"github.com/tendant/simple-content-conversions/internal/generator"
	"github.com/tendant/simple-content-conversions/internal/ledger"
	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Manipulator runs conversions for media
type Manipulator interface {
	CreateDerivedFiles(ctx context.Context, media pipeline.Media) (*manipulator.Report, error)
	HandleJob(ctx context.Context, job pipeline.ConversionJob) ([]pipeline.DerivedFile, error)
	Registry() *conversion.Registry
}

// DriverStatus reports generator driver capabilities
type DriverStatus interface {
	Status() []generator.Status
}

// JobTracker looks up queued jobs
type JobTracker interface {
	JobStatus(ctx context.Context, id string) (*pipeline.JobStatus, error)
}

// DerivedFileLister lists the derived files recorded for a media item
type DerivedFileLister interface {
	List(ctx context.Context, mediaID string) ([]ledger.Record, error)
}

// Options are the optional collaborators of the handlers
type Options struct {
	Drivers DriverStatus
	Jobs    JobTracker
	Ledger  DerivedFileLister
	Library MediaLibrary
	Mode    string
	Logger  *slog.Logger
}

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	manipulator Manipulator
	drivers     DriverStatus
	jobs        JobTracker
	ledger      DerivedFileLister
	library     MediaLibrary
	mode        string
	logger      *slog.Logger
}

// New creates the HTTP handlers
func New(m Manipulator, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		manipulator: m,
		drivers:     opts.Drivers,
		jobs:        opts.Jobs,
		ledger:      opts.Ledger,
		library:     opts.Library,
		mode:        opts.Mode,
		logger:      logger,
	}
}

// Router registers every route on a new gorilla/mux router
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Keep routes on the root router, a subrouter answers a wrong method with 404
	r.HandleFunc("/v1/derived", h.CreateDerivedFiles).Methods("POST")
	r.HandleFunc("/v1/jobs", h.ExecuteJob).Methods("POST")
	r.HandleFunc("/v1/jobs/{id}", h.GetJob).Methods("GET")
	r.HandleFunc("/v1/conversions", h.ListConversions).Methods("GET")
	r.HandleFunc("/v1/drivers", h.ListDrivers).Methods("GET")
	r.HandleFunc("/v1/media/{id}/derived", h.ListDerivedFiles).Methods("GET")
	if h.library != nil {
		h.registerLibraryRoutes(r)
	}

	return r
}

// HealthCheck returns health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "healthy"}
	if h.mode != "" {
		resp["mode"] = h.mode
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateDerivedFiles handles POST /v1/derived. Non-queued conversions run
// before the response is written; queued ones are only submitted.
func (h *Handlers) CreateDerivedFiles(w http.ResponseWriter, r *http.Request) {
	var media pipeline.Media
	if err := json.NewDecoder(r.Body).Decode(&media); err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if media.ID == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}
	if media.FileName == "" {
		writeJSONError(w, "file_name is required", http.StatusBadRequest)
		return
	}

	report, err := h.manipulator.CreateDerivedFiles(r.Context(), media)
	if err != nil {
		h.logger.Error("failed to create derived files", "media_id", media.ID, "error", err)
		writeJSONError(w, fmt.Sprintf("Conversion failed: %v", err), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if len(report.Queued) > 0 {
		status = http.StatusAccepted
	}
	writeJSON(w, status, report.Response())
}

// ExecuteJob handles POST /v1/jobs by running a conversion job inline
func (h *Handlers) ExecuteJob(w http.ResponseWriter, r *http.Request) {
	var job pipeline.ConversionJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if err := job.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	completed, err := h.manipulator.HandleJob(r.Context(), job)
	if err != nil {
		h.logger.Error("conversion job failed", "media_id", job.Media.ID, "error", err)
		writeJSONError(w, fmt.Sprintf("Job failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, pipeline.DerivedFilesResponse{
		MediaID:   job.Media.ID,
		Completed: completed,
	})
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeJSONError(w, "job tracking is not available", http.StatusNotImplemented)
		return
	}

	id := mux.Vars(r)["id"]
	status, err := h.jobs.JobStatus(r.Context(), id)
	if errors.Is(err, pipeline.ErrJobNotFound) {
		writeJSONError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get job status", "job_id", id, "error", err)
		writeJSONError(w, fmt.Sprintf("Failed to get status: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// ListConversions handles GET /v1/conversions?collection=
func (h *Handlers) ListConversions(w http.ResponseWriter, r *http.Request) {
	registry := h.manipulator.Registry()

	var specs []pipeline.ConversionSpec
	if collection := r.URL.Query().Get("collection"); collection != "" {
		specs = registry.ForCollection(collection).Specs()
	} else {
		specs = registry.All().Specs()
	}
	if specs == nil {
		specs = []pipeline.ConversionSpec{}
	}

	writeJSON(w, http.StatusOK, specs)
}

// ListDrivers handles GET /v1/drivers
func (h *Handlers) ListDrivers(w http.ResponseWriter, r *http.Request) {
	if h.drivers == nil {
		writeJSON(w, http.StatusOK, []generator.Status{})
		return
	}
	writeJSON(w, http.StatusOK, h.drivers.Status())
}

// ListDerivedFiles handles GET /v1/media/{id}/derived
func (h *Handlers) ListDerivedFiles(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeJSONError(w, "derived file ledger is not configured", http.StatusNotImplemented)
		return
	}

	id := mux.Vars(r)["id"]
	records, err := h.ledger.List(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list derived files", "media_id", id, "error", err)
		writeJSONError(w, fmt.Sprintf("Failed to list derived files: %v", err), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}

	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
