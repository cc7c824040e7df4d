package apihttp

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"musicstream/internal/domain"
)

type downloadResponse struct {
	Success   bool   `json:"success,omitempty"`
	Warning   string `json:"warning,omitempty"`
	Message   string `json:"message,omitempty"`
	Filename  string `json:"filename,omitempty"`
	URL       string `json:"url,omitempty"`
	FutureURL string `json:"futureUrl,omitempty"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if s.ingestor == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "downloads are disabled")
		return
	}

	q := r.URL.Query()
	rawURL := q.Get("url")
	desired := q.Get("name")

	filename, err := s.ingestor.ResolveFilename(rawURL, desired)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingURL):
			writeError(w, http.StatusBadRequest, "missing_url", "please provide a music url")
		case errors.Is(err, domain.ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, "unsupported_format", "unsupported audio format")
		case errors.Is(err, domain.ErrInvalidFilename), errors.Is(err, domain.ErrPathDenied):
			writeError(w, http.StatusBadRequest, "invalid_filename", "invalid file name")
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid download request")
		}
		return
	}

	res, err := s.ingestor.Start(rawURL, filename)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeError(w, http.StatusConflict, "conflict", "download already in progress")
			return
		}
		s.logger.Error("start download failed",
			slog.String("file", filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid download request")
		return
	}

	trackURL := publicBaseURL(r) + "/music/" + url.PathEscape(res.Filename)
	if res.AlreadyExists {
		writeJSON(w, http.StatusOK, downloadResponse{
			Warning: "track already exists",
			URL:     trackURL,
		})
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{
		Success:   true,
		Message:   "download started",
		Filename:  res.Filename,
		FutureURL: trackURL,
	})
}

type historyResponse struct {
	Total int                     `json:"total"`
	Data  []domain.DownloadRecord `json:"data"`
}

func (s *Server) handleDownloadHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusOK, historyResponse{Total: 0, Data: []domain.DownloadRecord{}})
		return
	}

	limit := parseOptionalInt(r.URL.Query().Get("limit"), 50)
	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("load download history failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history_failed", "failed to load download history")
		return
	}
	if records == nil {
		records = []domain.DownloadRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Total: len(records), Data: records})
}
