// Package library mediates all access to the music storage directory.
package library

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"musicstream/internal/domain"
)

// Library resolves track names to paths under a single storage directory and
// performs the filesystem operations the catalog and streaming paths need.
type Library struct {
	dir string
}

// New returns a Library rooted at dir, creating the directory if missing.
func New(dir string) (*Library, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Library{dir: abs}, nil
}

func (l *Library) Dir() string {
	return l.dir
}

// Resolve joins name onto the storage directory and rejects any result that
// escapes it.
func (l *Library) Resolve(name string) (string, error) {
	joined := filepath.Clean(filepath.Join(l.dir, filepath.FromSlash(name)))
	if joined != l.dir && !strings.HasPrefix(joined, l.dir+string(filepath.Separator)) {
		return "", domain.ErrPathDenied
	}
	return joined, nil
}

// Stat returns fresh file info for an absolute path inside the library.
func (l *Library) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Open opens the file at path for reading.
func (l *Library) Open(path string) (*os.File, error) {
	return os.Open(path)
}

// Exists reports whether a regular file exists at path.
func (l *Library) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// List enumerates the supported audio files in the storage directory with a
// fresh stat per file. Files that disappear between the directory read and
// the stat are skipped.
func (l *Library) List() ([]domain.TrackInfo, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}

	tracks := make([]domain.TrackInfo, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || !domain.IsAudioFile(entry.Name()) {
			continue
		}
		info, err := os.Stat(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			continue
		}
		tracks = append(tracks, domain.TrackInfo{
			Filename: entry.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return tracks, nil
}

// MatchNames returns the audio files whose base name's segment before the
// first '-' equals one of the requested names, trimmed and case-insensitive.
// The loose match is intentional: tracks are stored as "title-artist.ext" and
// deletion targets titles, not exact filenames.
func (l *Library) MatchNames(names []string) ([]string, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, entry := range dirEntries {
		if entry.IsDir() || !domain.IsAudioFile(entry.Name()) {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		title := strings.TrimSpace(strings.SplitN(base, "-", 2)[0])
		for _, name := range names {
			if strings.EqualFold(title, strings.TrimSpace(name)) {
				matched = append(matched, entry.Name())
				break
			}
		}
	}
	return matched, nil
}

// ListAll returns the names of every supported audio file in the directory.
func (l *Library) ListAll() ([]string, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range dirEntries {
		if entry.IsDir() || !domain.IsAudioFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Remove unlinks the named file and returns the absolute path that was
// removed, so callers can invalidate cache entries keyed by path.
func (l *Library) Remove(name string) (string, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return path, err
	}
	return path, nil
}
