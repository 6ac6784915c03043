// Package report writes resolution results to one or more sinks.
//
// A Sink receives Records one at a time and flushes on Close. Sinks are
// selected by name through the registry, so the CLI and the scanner never
// switch on a sink type.
package report

import (
	"context"
	"time"

	cperrors "github.com/codepage/codepage/pkg/errors"
	"github.com/codepage/codepage/pkg/resolve"
)

// Record is one resolved file.
type Record struct {
	Path           string    `json:"path"`
	FileEncoding   string    `json:"file_encoding"`
	StreamEncoding string    `json:"stream_encoding,omitempty"`
	Detector       string    `json:"detector,omitempty"`
	Fallback       bool      `json:"fallback"`
	Error          string    `json:"error,omitempty"`
	Size           int64     `json:"size"`
	ModTime        time.Time `json:"mod_time"`
}

// FromResolution builds a record from the addressable resolution of path.
// stream may be nil when the stream path was not resolved.
func FromResolution(path string, file resolve.Resolution, stream *resolve.Resolution) Record {
	r := Record{
		Path:         path,
		FileEncoding: string(file.Encoding),
		Detector:     file.Detector,
		Fallback:     file.Fallback,
		Size:         -1,
	}
	if file.Err != nil {
		r.Error = file.Err.Error()
	}
	if stream != nil {
		r.StreamEncoding = string(stream.Encoding)
		if r.Error == "" && stream.Err != nil {
			r.Error = stream.Err.Error()
		}
	}
	return r
}

// Sink consumes records. Write may be called from one goroutine at a time;
// Close flushes buffered output and releases resources.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Multi fans each record out to every sink.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks. Nil entries are dropped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// Sinks returns the wrapped sinks.
func (m *Multi) Sinks() []Sink { return m.sinks }

// Write delivers rec to every sink and keeps going past failures.
func (m *Multi) Write(ctx context.Context, rec Record) error {
	var errs cperrors.MultiError
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			errs.Add(failed(s.Name(), err))
		}
	}
	return errs.Combined()
}

// Close closes every sink.
func (m *Multi) Close(ctx context.Context) error {
	var errs cperrors.MultiError
	for _, s := range m.sinks {
		if err := s.Close(ctx); err != nil {
			errs.Add(failed(s.Name(), err))
		}
	}
	return errs.Combined()
}

func failed(sink string, err error) error {
	if cperrors.IsCode(err, cperrors.CodeReportFailed) {
		return err
	}
	return cperrors.Wrap(err, cperrors.CodeReportFailed, "report failed").WithContext("sink", sink)
}

var _ Sink = (*Multi)(nil)
