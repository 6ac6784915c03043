package sources

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/codepage/codepage/pkg/ingest/core"
	"github.com/codepage/codepage/pkg/storage/s3"
)

// ObjectStore is the subset of the S3 client used by S3Source.
type ObjectStore interface {
	Reader(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
	ReaderWithRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, int64, error)
	Stat(ctx context.Context, bucket, key string) (*s3.ObjectInfo, error)
}

// S3Source reads an object from S3. Every Open issues a new GetObject, so
// the object can be re-read by every detector.
type S3Source struct {
	store    ObjectStore
	bucket   string
	key      string
	maxBytes int64

	mu       sync.RWMutex
	format   core.Format
	size     int64
	modTime  time.Time
	metadata map[string]string
}

// NewS3Source creates a source for "s3://bucket/key". When maxBytes is
// positive, Open fetches only that many leading bytes with a range request.
func NewS3Source(store ObjectStore, uri string, maxBytes int64) (*S3Source, error) {
	bucket, key, err := s3.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &S3Source{
		store:    store,
		bucket:   bucket,
		key:      key,
		maxBytes: maxBytes,
		size:     -1,
		format:   formatFromExtension(strings.ToLower(path.Ext(key))),
		metadata: map[string]string{"bucket": bucket},
	}, nil
}

func (s *S3Source) ID() string       { return s.Location() }
func (s *S3Source) Location() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Source) Format() core.Format {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.format
}

func (s *S3Source) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *S3Source) ModTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modTime
}

func (s *S3Source) Metadata() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// Stat fetches object metadata without reading the body.
func (s *S3Source) Stat(ctx context.Context) error {
	info, err := s.store.Stat(ctx, s.bucket, s.key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = info.Size
	s.modTime = info.LastModified
	if info.ETag != "" {
		s.metadata["etag"] = info.ETag
	}
	if info.ContentType != "" {
		s.metadata["content_type"] = info.ContentType
		if f := formatFromContentType(info.ContentType); f != core.FormatUnknown {
			s.format = f
		}
	}
	return nil
}

// Open returns a reader over the object, or over its first maxBytes bytes.
func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.maxBytes > 0 {
		rc, _, err := s.store.ReaderWithRange(ctx, s.bucket, s.key, 0, s.maxBytes-1)
		return rc, err
	}

	rc, size, err := s.store.Reader(ctx, s.bucket, s.key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
	return rc, nil
}

// Verify interface compliance
var _ core.Source = (*S3Source)(nil)
