// Package sources provides Source implementations for various input types.
package sources

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/codepage/codepage/pkg/ingest/core"
	"github.com/codepage/codepage/pkg/util"
)

// FileSource implements Source for local files. It may be opened any number
// of times; each Open starts a new read from the first byte.
type FileSource struct {
	path   string
	info   os.FileInfo
	format core.Format
	gzip   bool
	meta   map[string]string
}

// NewFileSource creates a new file source.
func NewFileSource(path string) (*FileSource, error) {
	return NewFileSourceWithOptions(path, DefaultFileSourceOptions())
}

// NewFileSourceWithOptions creates a file source with explicit options.
func NewFileSourceWithOptions(path string, opts FileSourceOptions) (*FileSource, error) {
	stat := os.Stat
	if !opts.FollowSymlinks {
		stat = os.Lstat
	}
	info, err := stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: errIsDirectory}
	}

	f := &FileSource{
		path:   path,
		info:   info,
		format: formatFromExtension(util.BaseFormat(path)),
		gzip:   opts.Decompress && util.IsGzipFile(path),
		meta:   make(map[string]string),
	}
	if f.gzip {
		f.meta["compression"] = "gzip"
	}
	return f, nil
}

func (f *FileSource) ID() string                  { return f.path }
func (f *FileSource) Location() string            { return f.path }
func (f *FileSource) Format() core.Format         { return f.format }
func (f *FileSource) ModTime() time.Time          { return f.info.ModTime() }
func (f *FileSource) Metadata() map[string]string { return f.meta }

// Size returns the on-disk size, or -1 when the content is decompressed on read.
func (f *FileSource) Size() int64 {
	if f.gzip {
		return -1
	}
	return f.info.Size()
}

// Open returns a reader for the file.
func (f *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.gzip {
		return util.OpenFile(f.path)
	}
	return os.Open(f.path)
}

// FileSourceOptions configures file source behavior.
type FileSourceOptions struct {
	// Decompress reads *.gz files through a gzip reader.
	Decompress bool

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool
}

// DefaultFileSourceOptions returns sensible defaults.
func DefaultFileSourceOptions() FileSourceOptions {
	return FileSourceOptions{
		Decompress:     true,
		FollowSymlinks: true,
	}
}

// Verify interface compliance
var _ core.Source = (*FileSource)(nil)
