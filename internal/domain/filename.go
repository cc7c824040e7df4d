package domain

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Supported audio extensions, lower case with leading dot.
var supportedExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
}

// filenamePattern accepts names whose first character is a word character or a
// character from the approved non-Latin ranges (Hiragana, Katakana, CJK,
// Hangul, Thai), whose remaining characters additionally allow whitespace and
// a small punctuation set, and which end in a supported audio extension.
var filenamePattern = regexp.MustCompile(`^(?i)[\w\x{3040}-\x{309f}\x{30a0}-\x{30ff}\x{4e00}-\x{9fa5}\x{ac00}-\x{d7af}\x{0e00}-\x{0e7f}]` +
	`[\w\x{3040}-\x{309f}\x{30a0}-\x{30ff}\x{4e00}-\x{9fa5}\x{ac00}-\x{d7af}\x{0e00}-\x{0e7f}\s\-_.(),，（）+]+` +
	`\.(mp3|wav|flac|m4a)$`)

// ValidateFilename reports whether name is acceptable as a track filename.
// Returns ErrInvalidFilename when the allow-list pattern does not match and
// ErrPathDenied when the normalized form contains a parent-directory segment.
// It never touches the filesystem.
func ValidateFilename(name string) error {
	if !filenamePattern.MatchString(name) {
		return ErrInvalidFilename
	}
	normalized := filepath.ToSlash(filepath.Clean(name))
	if strings.Contains(normalized, "..") {
		return ErrPathDenied
	}
	return nil
}

// SupportedExtension reports whether ext (with leading dot, any case) is one
// of the audio formats the service serves.
func SupportedExtension(ext string) bool {
	_, ok := supportedExtensions[strings.ToLower(ext)]
	return ok
}

// ContentTypeForExtension maps a file extension to its MIME type, falling back
// to application/octet-stream for anything outside the fixed table.
func ContentTypeForExtension(ext string) string {
	if ct, ok := supportedExtensions[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsAudioFile reports whether the given filename carries a supported audio
// extension.
func IsAudioFile(name string) bool {
	return SupportedExtension(path.Ext(name))
}
