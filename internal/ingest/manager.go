// Package ingest fetches remote audio files into the local storage directory.
// Transfers run detached from the triggering request; the caller only learns
// whether a transfer was started, and discovers the outcome through a later
// list, a direct fetch, or the download history.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"musicstream/internal/domain"
	"musicstream/internal/library"
	"musicstream/internal/metrics"
)

const (
	DefaultTimeout       = 5 * time.Minute
	DefaultMaxConcurrent = 4
	defaultRedirectLimit = 5
	downloadUserAgent    = "musicstream/1.0"
	historyRecordTimeout = 5 * time.Second
)

// HistoryStore records finished ingestion jobs.
type HistoryStore interface {
	Add(ctx context.Context, rec domain.DownloadRecord) error
	Recent(ctx context.Context, limit int) ([]domain.DownloadRecord, error)
}

// Result is the immediate answer to a start request; the transfer itself, if
// any, proceeds in the background.
type Result struct {
	Filename      string
	AlreadyExists bool
}

// Manager owns the per-destination job table. A destination that already has
// a transfer in flight is rejected with domain.ErrConflict rather than letting
// two writers race for the same file.
type Manager struct {
	lib     *library.Library
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	history HistoryStore
	notify  func(domain.DownloadRecord)
	sem     *semaphore.Weighted

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

type Option func(*Manager)

func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithHistory(store HistoryStore) Option {
	return func(m *Manager) { m.history = store }
}

// WithNotify registers a hook invoked with every finished job record.
func WithNotify(fn func(domain.DownloadRecord)) Option {
	return func(m *Manager) { m.notify = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithClient(client *http.Client) Option {
	return func(m *Manager) { m.client = client }
}

func New(lib *library.Library, opts ...Option) *Manager {
	m := &Manager{
		lib:     lib,
		timeout: DefaultTimeout,
		sem:     semaphore.NewWeighted(DefaultMaxConcurrent),
		active:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.client == nil {
		m.client = newDownloadClient()
	}
	return m
}

// ResolveFilename derives the destination filename for a source URL: the
// percent-decoded base name of the URL path, or desiredBase plus the source
// extension when a desired name is supplied. The result must carry a
// supported audio extension and pass filename validation.
func (m *Manager) ResolveFilename(rawURL, desiredBase string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", domain.ErrMissingURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	base := path.Base(parsed.Path)
	if decoded, err := url.PathUnescape(base); err == nil {
		base = decoded
	}

	ext := strings.ToLower(path.Ext(base))
	if !domain.SupportedExtension(ext) {
		return "", domain.ErrUnsupportedFormat
	}

	name := base
	if desired := strings.TrimSpace(desiredBase); desired != "" {
		name = desired + ext
	}

	if err := domain.ValidateFilename(name); err != nil {
		return "", err
	}
	return name, nil
}

// Start begins a background transfer of rawURL to filename. It returns
// immediately: AlreadyExists when the destination file is present (no
// transfer started), domain.ErrConflict when another transfer for the same
// destination is in flight.
func (m *Manager) Start(rawURL, filename string) (Result, error) {
	dest, err := m.lib.Resolve(filename)
	if err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	// Busy check first: the transfer creates dest right away, so a partial
	// file must report as a conflict, not as already present.
	if _, busy := m.active[dest]; busy {
		m.mu.Unlock()
		return Result{}, domain.ErrConflict
	}
	if m.lib.Exists(dest) {
		m.mu.Unlock()
		return Result{Filename: filename, AlreadyExists: true}, nil
	}
	m.active[dest] = struct{}{}
	m.mu.Unlock()

	metrics.DownloadsStartedTotal.Inc()
	metrics.ActiveDownloads.Inc()

	m.wg.Add(1)
	go m.fetch(rawURL, filename, dest)

	return Result{Filename: filename}, nil
}

// Wait blocks until every in-flight transfer has finished. Used by graceful
// shutdown; new transfers should not be started concurrently with Wait.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) fetch(rawURL, filename, dest string) {
	defer m.wg.Done()

	started := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var (
		size int64
		err  error
	)
	if err = m.sem.Acquire(ctx, 1); err == nil {
		size, err = m.transfer(ctx, rawURL, dest)
		m.sem.Release(1)
	}

	// Release the destination before announcing the outcome, so anyone
	// reacting to the notification can start a fresh transfer immediately.
	m.mu.Lock()
	delete(m.active, dest)
	m.mu.Unlock()
	metrics.ActiveDownloads.Dec()

	m.finish(filename, rawURL, size, started, err)
}

func (m *Manager) transfer(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}

	// O_EXCL guards the window between the existence check and file creation:
	// if another writer got here first, this transfer fails instead of
	// truncating its output.
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// The file was created by this transfer, so a partial write is safe
		// to discard. A failed remove is not surfaced anywhere.
		_ = os.Remove(dest)
		return 0, err
	}
	return size, nil
}

func (m *Manager) finish(filename, rawURL string, size int64, started time.Time, err error) {
	rec := domain.DownloadRecord{
		Filename:   filename,
		SourceURL:  rawURL,
		Status:     domain.DownloadCompleted,
		Size:       size,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	if err != nil {
		rec.Status = domain.DownloadFailed
		rec.Error = err.Error()
		rec.Size = 0
		metrics.DownloadsFailedTotal.Inc()
		m.logger.Error("download failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	} else {
		metrics.DownloadsCompletedTotal.Inc()
		m.logger.Info("download finished",
			slog.String("filename", filename),
			slog.Int64("size", size),
			slog.Int64("durationMs", time.Since(started).Milliseconds()),
		)
	}

	if m.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyRecordTimeout)
		if addErr := m.history.Add(ctx, rec); addErr != nil {
			m.logger.Warn("history record failed", slog.String("error", addErr.Error()))
		}
		cancel()
	}
	if m.notify != nil {
		m.notify(rec)
	}
}

func newDownloadClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{Timeout: 15 * time.Second, KeepAlive: 30 * time.Second}
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= defaultRedirectLimit {
				return fmt.Errorf("stopped after %d redirects", defaultRedirectLimit)
			}
			return nil
		},
	}
}
