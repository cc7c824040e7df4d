package apihttp

import (
	"log/slog"
	"net/http"
	"strings"

	"musicstream/internal/cache"
	"musicstream/internal/domain"
	"musicstream/internal/ingest"
	"musicstream/internal/library"
	"musicstream/internal/stats"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Ingestor starts background transfers of remote audio files.
type Ingestor interface {
	ResolveFilename(rawURL, desiredBase string) (string, error)
	Start(rawURL, filename string) (ingest.Result, error)
}

type Server struct {
	lib            *library.Library
	cache          *cache.Metadata
	stats          *stats.Transfer
	ingestor       Ingestor
	history        ingest.HistoryStore
	adminPassword  string
	publicDir      string
	allowedOrigins []string
	logger         *slog.Logger
	wsHub          *wsHub
	handler        http.Handler
}

type ServerOption func(*Server)

func WithCache(c *cache.Metadata) ServerOption {
	return func(s *Server) { s.cache = c }
}

func WithStats(t *stats.Transfer) ServerOption {
	return func(s *Server) { s.stats = t }
}

func WithIngestor(i Ingestor) ServerOption {
	return func(s *Server) { s.ingestor = i }
}

func WithHistory(store ingest.HistoryStore) ServerOption {
	return func(s *Server) { s.history = store }
}

func WithAdminPassword(password string) ServerOption {
	return func(s *Server) { s.adminPassword = password }
}

// WithPublicDir serves static web assets from dir at the root path.
func WithPublicDir(dir string) ServerOption {
	return func(s *Server) { s.publicDir = strings.TrimSpace(dir) }
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(lib *library.Library, opts ...ServerOption) *Server {
	s := &Server{
		lib:           lib,
		adminPassword: "admin",
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cache == nil {
		s.cache = cache.New(cache.DefaultTTL, cache.DefaultMaxEntries)
	}
	if s.stats == nil {
		s.stats = stats.NewTransfer()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/music/", s.handleMusic)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/api/download", s.handleDownload)
	mux.HandleFunc("/api/download/history", s.handleDownloadHistory)
	mux.HandleFunc("/api/music/list", s.handleList)
	mux.HandleFunc("/api/delete/music", s.handleDelete)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/internal/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(lib.Dir()))))
	if s.publicDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.publicDir)))
	}

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "musicstream",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/internal/health" && p != "/ws" && !strings.HasPrefix(p, "/static/")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close shuts down the WebSocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastStats pushes the current transfer counters to all WebSocket
// clients.
func (s *Server) BroadcastStats() {
	totalBytes, requests := s.stats.Snapshot()
	s.wsHub.Broadcast("stats", statsResponse{
		TotalTransferred: domain.FormatSize(int64(totalBytes)),
		TotalRequests:    requests,
	})
}

// BroadcastDownload announces a finished ingestion to all WebSocket clients.
// Wired as the ingest manager's notify hook.
func (s *Server) BroadcastDownload(rec domain.DownloadRecord) {
	s.wsHub.Broadcast("download", rec)
}
