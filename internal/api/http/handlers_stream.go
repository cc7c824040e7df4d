package apihttp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"musicstream/internal/cache"
	"musicstream/internal/domain"
	"musicstream/internal/metrics"
)

// streamChunkSize bounds per-request copy buffers during streaming.
const streamChunkSize = 64 << 10

func (s *Server) handleMusic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/music/")
	if err := domain.ValidateFilename(filename); err != nil {
		if errors.Is(err, domain.ErrPathDenied) {
			writeError(w, http.StatusForbidden, "forbidden", "access denied")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_filename", "invalid file name")
		return
	}

	path, err := s.lib.Resolve(filename)
	if err != nil {
		writeError(w, http.StatusForbidden, "forbidden", "access denied")
		return
	}

	entry, ok := s.cache.Get(path)
	if !ok {
		info, statErr := s.lib.Stat(path)
		if statErr != nil {
			writeError(w, http.StatusNotFound, "not_found", "file not found")
			return
		}
		entry = cache.Entry{Size: info.Size(), ModTime: info.ModTime(), Exists: true}
		s.cache.Set(path, entry)
	}
	if !entry.Exists {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}

	f, err := s.lib.Open(path)
	if err != nil {
		s.cache.Invalidate(path)
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Cache-Control", "public, max-age=3600")
	h.Set("Last-Modified", entry.ModTime.UTC().Format(http.TimeFormat))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", domain.ContentTypeForExtension(filepath.Ext(filename)))
	h.Set("Content-Disposition", "inline; filename*=UTF-8''"+encodeRFC5987(filename))
	h.Set("X-Content-Type-Options", "nosniff")

	if r.Method == http.MethodHead {
		h.Set("Content-Length", strconv.FormatInt(entry.Size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		start, end, rerr := parseByteRange(rangeHeader, entry.Size)
		if rerr != nil {
			h.Set("Content-Range", fmt.Sprintf("bytes */%d", entry.Size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to read file")
			return
		}
		length := end - start + 1
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, entry.Size))
		h.Set("Content-Length", strconv.FormatInt(length, 10))
		w.WriteHeader(http.StatusPartialContent)

		s.stats.RecordStream(length)
		metrics.StreamRequestsTotal.WithLabelValues("partial").Inc()
		s.copyStream(w, io.LimitReader(f, length), filename)
		return
	}

	h.Set("Content-Length", strconv.FormatInt(entry.Size, 10))
	w.WriteHeader(http.StatusOK)

	s.stats.RecordStream(entry.Size)
	metrics.StreamRequestsTotal.WithLabelValues("full").Inc()
	s.copyStream(w, io.LimitReader(f, entry.Size), filename)
}

// copyStream pushes file bytes to the client in fixed-size chunks. Write
// failures here mean the client went away mid-stream; the response is already
// committed, so they are only logged.
func (s *Server) copyStream(w http.ResponseWriter, src io.Reader, filename string) {
	n, err := io.CopyBuffer(w, src, make([]byte, streamChunkSize))
	metrics.StreamBytesTotal.Add(float64(n))
	if err != nil {
		s.logger.Debug("stream interrupted",
			slog.String("file", filename),
			slog.Int64("written", n),
			slog.String("error", err.Error()),
		)
	}
}
