package domain

import "errors"

var (
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrPathDenied        = errors.New("path denied")
	ErrMissingURL        = errors.New("missing url")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrConflict          = errors.New("download already in progress")
)
