package sources

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codepage/codepage/pkg/ingest/core"
)

// DefaultSampleSize is the number of leading stream bytes buffered when the
// caller does not choose a sample size.
const DefaultSampleSize = 128

// StreamSource wraps a one-shot io.Reader as a Source. The first Open buffers
// at most sampleSize leading bytes; every Open, including the first, returns
// a reader over that buffer, so detectors can share the same prefix. Bytes
// past the sample are never read. The underlying reader is not closed: it
// belongs to the caller.
type StreamSource struct {
	id         string
	reader     io.Reader
	format     core.Format
	sampleSize int64
	created    time.Time
	meta       map[string]string

	once   sync.Once
	sample []byte
	err    error
}

// NewStreamSource creates a source from an io.Reader. A negative sampleSize
// selects DefaultSampleSize; zero yields an empty sample.
func NewStreamSource(reader io.Reader, sampleSize int) *StreamSource {
	if sampleSize < 0 {
		sampleSize = DefaultSampleSize
	}
	return &StreamSource{
		id:         uuid.NewString(),
		reader:     reader,
		sampleSize: int64(sampleSize),
		created:    time.Now(),
		meta: map[string]string{
			"sample_size": strconv.Itoa(sampleSize),
		},
	}
}

func (s *StreamSource) ID() string          { return s.id }
func (s *StreamSource) Location() string    { return "stream://" + s.id }
func (s *StreamSource) Format() core.Format { return s.format }
func (s *StreamSource) ModTime() time.Time  { return s.created }
func (s *StreamSource) SampleSize() int64   { return s.sampleSize }

// Size returns the number of buffered bytes, or -1 before the first Open.
func (s *StreamSource) Size() int64 {
	if s.sample == nil && s.err == nil {
		return -1
	}
	return int64(len(s.sample))
}

// Metadata returns stream metadata. After buffering it reports
// sample_exhausted=true when the stream ended before the sample was full.
func (s *StreamSource) Metadata() map[string]string { return s.meta }

// SetFormat sets the content hint, e.g. from a Content-Type header.
func (s *StreamSource) SetFormat(format core.Format) {
	s.format = format
}

// Open buffers the sample on first use and returns a reader over it.
func (s *StreamSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.once.Do(s.fill)
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.sample)), nil
}

// Exhausted reports whether the stream held fewer bytes than the sample size.
func (s *StreamSource) Exhausted() bool {
	return s.meta["sample_exhausted"] == "true"
}

func (s *StreamSource) fill() {
	if s.reader == nil {
		s.err = io.ErrClosedPipe
		return
	}

	data, err := io.ReadAll(io.LimitReader(s.reader, s.sampleSize))
	if err != nil {
		s.err = err
		return
	}
	if int64(len(data)) < s.sampleSize {
		// A short stream is not a failure; detection runs on what arrived.
		s.meta["sample_exhausted"] = "true"
	}
	s.sample = data
	s.meta["sample_bytes"] = strconv.Itoa(len(data))
}

// Verify interface compliance
var (
	_ core.Source  = (*StreamSource)(nil)
	_ core.Sampled = (*StreamSource)(nil)
)
