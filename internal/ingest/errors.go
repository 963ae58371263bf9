package ingest

import (
	"fmt"
	"io/fs"
)

// FileNotFoundError reports a missing source file.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error {
	return fs.ErrNotExist
}

// FileTooLargeError reports a file above the configured size limit.
type FileTooLargeError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s is %.1fMB, limit is %.0fMB",
		e.Path, float64(e.Size)/(1024*1024), float64(e.Limit)/(1024*1024))
}

// UnsupportedFormatError reports a file whose format cannot be decoded.
type UnsupportedFormatError struct {
	Path   string
	Format string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	format := e.Format
	if format == "" {
		format = "(none)"
	}
	msg := fmt.Sprintf("unsupported format %s for %s", format, e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
