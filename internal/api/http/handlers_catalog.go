package apihttp

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"musicstream/internal/domain"
)

type statsResponse struct {
	TotalTransferred string `json:"totalTransferred"`
	TotalRequests    uint64 `json:"totalRequests"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	totalBytes, requests := s.stats.Snapshot()
	writeJSON(w, http.StatusOK, statsResponse{
		TotalTransferred: domain.FormatSize(int64(totalBytes)),
		TotalRequests:    requests,
	})
}

type trackItem struct {
	Filename     string `json:"filename"`
	URL          string `json:"url"`
	Size         string `json:"size"`
	Extension    string `json:"extension"`
	LastModified string `json:"lastModified"`
}

type listResponse struct {
	Total int         `json:"total"`
	Data  []trackItem `json:"data"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tracks, err := s.lib.List()
	if err != nil {
		s.logger.Error("list tracks failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list tracks")
		return
	}

	base := publicBaseURL(r)
	items := make([]trackItem, 0, len(tracks))
	for _, t := range tracks {
		ext := strings.TrimPrefix(filepath.Ext(t.Filename), ".")
		items = append(items, trackItem{
			Filename:     t.Filename,
			URL:          base + "/music/" + url.PathEscape(t.Filename),
			Size:         domain.FormatSize(t.Size),
			Extension:    strings.ToUpper(ext),
			LastModified: t.ModTime.Format("2006-01-02 15:04:05"),
		})
	}
	writeJSON(w, http.StatusOK, listResponse{Total: len(items), Data: items})
}

type deleteRequest struct {
	Names    stringList `json:"names"`
	All      flexBool   `json:"all"`
	Password string     `json:"password"`
}

type deleteResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	DeletedFiles []string `json:"deletedFiles"`
	FailedFiles  []string `json:"failedFiles,omitempty"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req deleteRequest
	if r.Body != nil {
		// An empty or non-JSON body is fine, the query string is the fallback.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	q := r.URL.Query()
	if req.Password == "" {
		req.Password = q.Get("password")
	}
	if !bool(req.All) && strings.EqualFold(q.Get("all"), "true") {
		req.All = true
	}
	if len(req.Names) == 0 {
		req.Names = parseCommaSeparated(q.Get("names"))
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid password")
		return
	}

	var (
		targets []string
		err     error
	)
	switch {
	case bool(req.All):
		targets, err = s.lib.ListAll()
	case len(req.Names) > 0:
		targets, err = s.lib.MatchNames(req.Names)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "provide names or all=true")
		return
	}
	if err != nil {
		s.logger.Error("delete scan failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to scan library")
		return
	}
	if len(targets) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no matching songs found")
		return
	}

	var deleted, failed []string
	for _, name := range targets {
		path, rmErr := s.lib.Remove(name)
		if rmErr != nil {
			s.logger.Error("delete failed",
				slog.String("file", name),
				slog.String("error", rmErr.Error()),
			)
			failed = append(failed, name)
			continue
		}
		s.cache.Invalidate(path)
		deleted = append(deleted, name)
	}

	s.wsHub.Broadcast("library", map[string]any{"event": "deleted", "files": deleted})

	if len(failed) > 0 {
		writeJSON(w, http.StatusInternalServerError, deleteResponse{
			Success:      false,
			Message:      fmt.Sprintf("deleted %d file(s), %d failed", len(deleted), len(failed)),
			DeletedFiles: deleted,
			FailedFiles:  failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Success:      true,
		Message:      fmt.Sprintf("deleted %d file(s)", len(deleted)),
		DeletedFiles: deleted,
	})
}
