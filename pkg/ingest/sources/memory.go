package sources

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/codepage/codepage/pkg/ingest/core"
)

// MemorySource serves bytes held in memory. It is addressable: every Open
// reads the full slice again.
type MemorySource struct {
	id      string
	data    []byte
	format  core.Format
	created time.Time
	meta    map[string]string
}

// NewMemorySource creates a source from bytes. The slice is not copied and
// must not be modified while the source is in use.
func NewMemorySource(id string, data []byte, format core.Format) *MemorySource {
	return &MemorySource{
		id:      id,
		data:    data,
		format:  format,
		created: time.Now(),
		meta:    make(map[string]string),
	}
}

func (m *MemorySource) ID() string                  { return m.id }
func (m *MemorySource) Location() string            { return "memory://" + m.id }
func (m *MemorySource) Format() core.Format         { return m.format }
func (m *MemorySource) Size() int64                 { return int64(len(m.data)) }
func (m *MemorySource) ModTime() time.Time          { return m.created }
func (m *MemorySource) Metadata() map[string]string { return m.meta }

// Open returns a reader for the data.
func (m *MemorySource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// Verify interface compliance
var _ core.Source = (*MemorySource)(nil)
