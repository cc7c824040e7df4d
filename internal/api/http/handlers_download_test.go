package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"musicstream/internal/domain"
	"musicstream/internal/ingest"
)

// ---- fake ingestor ----

type fakeIngestor struct {
	resolveErr error
	startErr   error
	exists     bool
	started    []string
}

func (f *fakeIngestor) ResolveFilename(rawURL, desiredBase string) (string, error) {
	if rawURL == "" {
		return "", domain.ErrMissingURL
	}
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	if desiredBase != "" {
		return desiredBase + ".mp3", nil
	}
	return "resolved.mp3", nil
}

func (f *fakeIngestor) Start(rawURL, filename string) (ingest.Result, error) {
	if f.startErr != nil {
		return ingest.Result{}, f.startErr
	}
	if f.exists {
		return ingest.Result{Filename: filename, AlreadyExists: true}, nil
	}
	f.started = append(f.started, filename)
	return ingest.Result{Filename: filename}, nil
}

// ---- fake history ----

type fakeHistory struct {
	records []domain.DownloadRecord
	err     error
}

func (f *fakeHistory) Add(_ context.Context, rec domain.DownloadRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]domain.DownloadRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

// ---- GET /api/download ----

func TestDownload_MissingURL(t *testing.T) {
	s, _ := newStreamServer(t, nil, WithIngestor(&fakeIngestor{}))

	rec := doRequest(s, http.MethodGet, "/api/download", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "missing_url" {
		t.Fatalf("code = %q", resp.Error.Code)
	}
}

func TestDownload_UnsupportedFormat(t *testing.T) {
	s, _ := newStreamServer(t, nil, WithIngestor(&fakeIngestor{resolveErr: domain.ErrUnsupportedFormat}))

	rec := doRequest(s, http.MethodGet, "/api/download?url=http://cdn.example/x.mp4", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error.Code != "unsupported_format" {
		t.Fatalf("code = %q", resp.Error.Code)
	}
}

func TestDownload_ConflictWhileInFlight(t *testing.T) {
	s, _ := newStreamServer(t, nil, WithIngestor(&fakeIngestor{startErr: domain.ErrConflict}))

	rec := doRequest(s, http.MethodGet, "/api/download?url=http://cdn.example/x.mp3", nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestDownload_ExistingTrackReturnsWarning(t *testing.T) {
	s, _ := newStreamServer(t, nil, WithIngestor(&fakeIngestor{exists: true}))

	rec := doRequest(s, http.MethodGet, "/api/download?url=http://cdn.example/x.mp3", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp downloadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Warning == "" {
		t.Fatal("expected warning for existing track")
	}
	if resp.URL == "" || resp.FutureURL != "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestDownload_StartedReturnsFutureURL(t *testing.T) {
	ing := &fakeIngestor{}
	s, _ := newStreamServer(t, nil, WithIngestor(ing))

	rec := doRequest(s, http.MethodGet, "/api/download?url=http://cdn.example/x.mp3&name=renamed", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp downloadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Filename != "renamed.mp3" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.FutureURL == "" {
		t.Fatal("missing futureUrl")
	}
	if len(ing.started) != 1 || ing.started[0] != "renamed.mp3" {
		t.Fatalf("started = %v", ing.started)
	}
}

func TestDownload_DisabledWithoutIngestor(t *testing.T) {
	s, _ := newStreamServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/api/download?url=http://cdn.example/x.mp3", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

// ---- GET /api/download/history ----

func TestDownloadHistory_ReturnsRecords(t *testing.T) {
	history := &fakeHistory{records: []domain.DownloadRecord{
		{Filename: "a.mp3", Status: domain.DownloadCompleted, Size: 10, FinishedAt: time.Now()},
		{Filename: "b.mp3", Status: domain.DownloadFailed, Error: "upstream returned HTTP 500"},
	}}
	s, _ := newStreamServer(t, nil, WithHistory(history))

	rec := doRequest(s, http.MethodGet, "/api/download/history", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp historyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestDownloadHistory_LimitQuery(t *testing.T) {
	history := &fakeHistory{records: []domain.DownloadRecord{
		{Filename: "a.mp3"}, {Filename: "b.mp3"}, {Filename: "c.mp3"},
	}}
	s, _ := newStreamServer(t, nil, WithHistory(history))

	rec := doRequest(s, http.MethodGet, "/api/download/history?limit=2", nil)

	var resp historyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
}

func TestDownloadHistory_EmptyWithoutStore(t *testing.T) {
	s, _ := newStreamServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/api/download/history", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp historyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 0 || resp.Data == nil {
		t.Fatalf("resp = %+v", resp)
	}
}
