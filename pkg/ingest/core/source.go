// Package core provides the fundamental abstractions for encoding detection.
package core

import (
	"context"
	"io"
	"time"
)

// Format is a structural hint about a source's content.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatText
	FormatHTML
	FormatXML
	FormatCSV
	FormatTSV
	FormatJSON
	FormatGzip
)

func (f Format) String() string {
	names := []string{"unknown", "text", "html", "xml", "csv", "tsv", "json", "gzip"}
	if int(f) < len(names) {
		return names[f]
	}
	return "unknown"
}

// IsMarkup reports whether the format is expected to carry markup declarations.
func (f Format) IsMarkup() bool {
	return f == FormatHTML || f == FormatXML
}

// Source is a read-only view over the bytes to be examined.
type Source interface {
	// ID returns a unique identifier for this source.
	ID() string

	// Location returns the source location (path, URL, etc.).
	Location() string

	// Format returns the structural hint for the content.
	Format() Format

	// Size returns the size in bytes, or -1 if unknown.
	Size() int64

	// ModTime returns the last modification time.
	ModTime() time.Time

	// Open returns a fresh reader positioned at the first byte.
	// Every call starts over; callers must close what they open.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Metadata returns source-specific metadata.
	Metadata() map[string]string
}

// Sampled is implemented by sources that expose only a bounded prefix of
// their bytes, such as buffered streams.
type Sampled interface {
	// SampleSize returns the number of leading bytes available for inspection.
	SampleSize() int64
}

// SampleLimit returns the inspection bound of src, or -1 when the whole
// source may be read.
func SampleLimit(src Source) int64 {
	if s, ok := src.(Sampled); ok {
		return s.SampleSize()
	}
	return -1
}
