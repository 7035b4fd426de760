package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tendant/simple-content-conversions/internal/conversion"
	"github.com/tendant/simple-content-conversions/internal/generator"
	"github.com/tendant/simple-content-conversions/internal/ledger"
	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

type fakeManipulator struct {
	registry *conversion.Registry
	err      error
	created  []pipeline.Media
	jobs     []pipeline.ConversionJob
}

func (f *fakeManipulator) CreateDerivedFiles(ctx context.Context, media pipeline.Media) (*manipulator.Report, error) {
	f.created = append(f.created, media)
	if f.err != nil {
		return nil, f.err
	}
	return &manipulator.Report{
		RunID:     "run-1",
		Media:     media,
		Completed: []pipeline.DerivedFile{{ConversionName: "thumb", Extension: "jpg"}},
		Queued:    []string{"large"},
		JobID:     "job-1",
	}, nil
}

func (f *fakeManipulator) HandleJob(ctx context.Context, job pipeline.ConversionJob) ([]pipeline.DerivedFile, error) {
	f.jobs = append(f.jobs, job)
	return []pipeline.DerivedFile{{ConversionName: "large", Extension: "webp"}}, f.err
}

func (f *fakeManipulator) Registry() *conversion.Registry { return f.registry }

type fakeJobs map[string]*pipeline.JobStatus

func (f fakeJobs) JobStatus(ctx context.Context, id string) (*pipeline.JobStatus, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, pipeline.ErrJobNotFound
}

type fakeLedger []ledger.Record

func (f fakeLedger) List(ctx context.Context, mediaID string) ([]ledger.Record, error) {
	return f, nil
}

func newTestHandlers(t *testing.T, opts Options) (*Handlers, *fakeManipulator) {
	t.Helper()
	registry, err := conversion.NewRegistry(
		conversion.New("thumb").Width(100).NonQueued(),
		conversion.New("large").Width(1200).PerformOnCollections("images"),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	m := &fakeManipulator{registry: registry}
	return New(m, opts), m
}

func do(t *testing.T, h *Handlers, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandlers(t, Options{Mode: "standalone"})

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["status"] != "healthy" || resp["mode"] != "standalone" {
		t.Errorf("Unexpected response %v", resp)
	}
}

func TestCreateDerivedFiles(t *testing.T) {
	h, m := newTestHandlers(t, Options{})

	rec := do(t, h, http.MethodPost, "/v1/derived", pipeline.Media{ID: "42", FileName: "photo.jpg", CollectionName: "images"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp pipeline.DerivedFilesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MediaID != "42" || resp.JobID != "job-1" || len(resp.Completed) != 1 || len(resp.Queued) != 1 {
		t.Errorf("Unexpected response %+v", resp)
	}
	if len(m.created) != 1 || m.created[0].CollectionName != "images" {
		t.Errorf("Expected media to be passed through, got %+v", m.created)
	}
}

func TestCreateDerivedFilesValidation(t *testing.T) {
	tests := []struct {
		name string
		body any
		code int
	}{
		{"missing id", pipeline.Media{FileName: "a.jpg"}, http.StatusBadRequest},
		{"missing file name", pipeline.Media{ID: "1"}, http.StatusBadRequest},
		{"not json", "not an object", http.StatusBadRequest},
	}

	h, _ := newTestHandlers(t, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/v1/derived", tt.body); rec.Code != tt.code {
				t.Errorf("Expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
}

func TestCreateDerivedFilesFailure(t *testing.T) {
	h, m := newTestHandlers(t, Options{})
	m.err = errors.New("no space left")

	rec := do(t, h, http.MethodPost, "/v1/derived", pipeline.Media{ID: "1", FileName: "a.jpg"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestExecuteJob(t *testing.T) {
	h, m := newTestHandlers(t, Options{})

	job := pipeline.NewConversionJob(pipeline.Media{ID: "42", FileName: "a.jpg"}, []pipeline.ConversionSpec{{Name: "large"}})
	rec := do(t, h, http.MethodPost, "/v1/jobs", job)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(m.jobs) != 1 {
		t.Errorf("Expected job to be handled once, got %d", len(m.jobs))
	}

	job.SchemaVersion = 99
	if rec := do(t, h, http.MethodPost, "/v1/jobs", job); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown schema version, got %d", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	jobs := fakeJobs{"media-1": {ID: "media-1", Status: pipeline.JobFailed, Error: "boom", UpdatedAt: time.Now()}}

	h, _ := newTestHandlers(t, Options{Jobs: jobs})
	rec := do(t, h, http.MethodGet, "/v1/jobs/media-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status pipeline.JobStatus
	json.NewDecoder(rec.Body).Decode(&status)
	if status.Status != pipeline.JobFailed || status.Error != "boom" {
		t.Errorf("Unexpected status %+v", status)
	}

	if rec := do(t, h, http.MethodGet, "/v1/jobs/unknown", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	untracked, _ := newTestHandlers(t, Options{})
	if rec := do(t, untracked, http.MethodGet, "/v1/jobs/media-1", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501 without a tracker, got %d", rec.Code)
	}
}

func TestListConversions(t *testing.T) {
	h, _ := newTestHandlers(t, Options{})

	tests := []struct {
		path string
		want []string
	}{
		{"/v1/conversions", []string{"thumb", "large"}},
		{"/v1/conversions?collection=images", []string{"thumb", "large"}},
		{"/v1/conversions?collection=docs", []string{"thumb"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, nil)
			var specs []pipeline.ConversionSpec
			if err := json.NewDecoder(rec.Body).Decode(&specs); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(specs) != len(tt.want) {
				t.Fatalf("Expected %v, got %+v", tt.want, specs)
			}
			for i, name := range tt.want {
				if specs[i].Name != name {
					t.Errorf("Expected %s at %d, got %s", name, i, specs[i].Name)
				}
			}
		})
	}
}

func TestListDrivers(t *testing.T) {
	h, _ := newTestHandlers(t, Options{Drivers: generator.DefaultSelector(generator.Tools{})})

	rec := do(t, h, http.MethodGet, "/v1/drivers", nil)
	var status []generator.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(status) != 4 || status[0].Kind != generator.KindImage || !status[0].RequirementsInstalled {
		t.Errorf("Unexpected driver status %+v", status)
	}
}

func TestListDerivedFiles(t *testing.T) {
	records := fakeLedger{{MediaID: "42", ConversionName: "thumb", Extension: "jpg", CompletedCount: 2}}
	h, _ := newTestHandlers(t, Options{Ledger: records})

	rec := do(t, h, http.MethodGet, "/v1/media/42/derived", nil)
	var got []ledger.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].CompletedCount != 2 {
		t.Errorf("Unexpected records %+v", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandlers(t, Options{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/derived"},
		{http.MethodPost, "/v1/conversions"},
		{http.MethodDelete, "/v1/jobs/job-1"},
	}
	for _, tt := range tests {
		if rec := do(t, h, tt.method, tt.path, nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tt.method, tt.path, rec.Code)
		}
	}

	if rec := do(t, h, http.MethodGet, "/v1/unknown", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown path, got %d", rec.Code)
	}
}
