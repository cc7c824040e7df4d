package domain

import (
	"fmt"
	"time"
)

// TrackInfo describes one audio file taken fresh from the storage directory.
type TrackInfo struct {
	Filename string
	Size     int64
	ModTime  time.Time
}

// DownloadStatus is the terminal state of an ingestion job.
type DownloadStatus string

const (
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// DownloadRecord is one finished ingestion, kept for the download history.
type DownloadRecord struct {
	Filename   string         `json:"filename"`
	SourceURL  string         `json:"sourceUrl"`
	Status     DownloadStatus `json:"status"`
	Size       int64          `json:"size"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders a byte count with binary-prefix units and two decimal
// places, capped at GB.
func FormatSize(n int64) string {
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f%s", size, sizeUnits[unit])
}
