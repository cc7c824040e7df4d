package mongo

import (
	"testing"
	"time"

	"musicstream/internal/domain"
)

func TestDownloadDocRoundTrip(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.DownloadRecord{
		Filename:   "track.mp3",
		SourceURL:  "http://cdn.example/track.mp3",
		Status:     domain.DownloadCompleted,
		Size:       4096,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}

	got := fromDownloadDoc(toDownloadDoc(rec))

	if got.Filename != rec.Filename || got.SourceURL != rec.SourceURL {
		t.Fatalf("identity fields mismatch: %+v", got)
	}
	if got.Status != rec.Status || got.Size != rec.Size {
		t.Fatalf("status/size mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(rec.StartedAt) || !got.FinishedAt.Equal(rec.FinishedAt) {
		t.Fatalf("timestamps mismatch: %+v", got)
	}
}

func TestDownloadDocKeepsError(t *testing.T) {
	rec := domain.DownloadRecord{
		Filename:   "bad.mp3",
		Status:     domain.DownloadFailed,
		Error:      "upstream returned HTTP 502",
		StartedAt:  time.Unix(1700000000, 0).UTC(),
		FinishedAt: time.Unix(1700000009, 0).UTC(),
	}

	doc := toDownloadDoc(rec)
	if doc.Status != "failed" {
		t.Fatalf("status = %q", doc.Status)
	}
	got := fromDownloadDoc(doc)
	if got.Error != rec.Error {
		t.Fatalf("error = %q", got.Error)
	}
	if got.Status != domain.DownloadFailed {
		t.Fatalf("status = %q", got.Status)
	}
}
