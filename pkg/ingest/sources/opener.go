package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/codepage/codepage/pkg/errors"
	"github.com/codepage/codepage/pkg/ingest/core"
	"github.com/codepage/codepage/pkg/storage/s3"
)

// Opener turns a locator string into an addressable Source. Supported forms
// are plain paths, file:// URLs, http(s):// URLs and s3://bucket/key.
type Opener struct {
	File FileSourceOptions
	HTTP *HTTPSourceOptions
	S3   s3.Config

	// S3MaxBytes bounds S3 reads to a leading range; zero reads whole objects.
	S3MaxBytes int64

	// Store overrides the S3 client, mainly for tests.
	Store ObjectStore

	// NewStore builds the S3 client on first use; nil means s3.NewClient.
	NewStore func(ctx context.Context, cfg s3.Config) (ObjectStore, error)

	mu sync.Mutex
}

// NewOpener returns an opener with default file options.
func NewOpener() *Opener {
	return &Opener{File: DefaultFileSourceOptions()}
}

// Open resolves locator to a Source. Construction failures for well-formed
// locators (missing file or object, S3 client setup) are SourceUnavailable;
// malformed locators are InvalidLocator.
func (o *Opener) Open(ctx context.Context, locator string) (core.Source, error) {
	if locator == "" {
		return nil, errors.InvalidLocator(locator, nil)
	}

	scheme := ""
	if i := strings.Index(locator, "://"); i > 0 {
		scheme = strings.ToLower(locator[:i])
	}

	switch scheme {
	case "":
		return o.openFile(locator)

	case "file":
		u, err := url.Parse(locator)
		if err != nil {
			return nil, errors.InvalidLocator(locator, err)
		}
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return nil, errors.InvalidLocator(locator, nil)
		}
		return o.openFile(p)

	case "http", "https":
		src, err := NewHTTPSource(locator, o.HTTP)
		if err != nil {
			return nil, errors.InvalidLocator(locator, err)
		}
		return src, nil

	case "s3":
		if _, _, err := s3.ParseURI(locator); err != nil {
			return nil, errors.InvalidLocator(locator, err)
		}
		store, err := o.store(ctx)
		if err != nil {
			return nil, errors.SourceUnavailable(locator, err)
		}
		src, err := NewS3Source(store, locator, o.S3MaxBytes)
		if err != nil {
			return nil, errors.InvalidLocator(locator, err)
		}
		// Content type from the object metadata feeds the markup detector.
		if err := src.Stat(ctx); err != nil {
			return nil, errors.SourceUnavailable(locator, err)
		}
		return src, nil

	default:
		return nil, errors.InvalidLocator(locator, fmt.Errorf("unsupported scheme: %s", scheme))
	}
}

func (o *Opener) openFile(path string) (core.Source, error) {
	opts := o.File
	if opts == (FileSourceOptions{}) {
		opts = DefaultFileSourceOptions()
	}
	src, err := NewFileSourceWithOptions(path, opts)
	if err != nil {
		return nil, errors.SourceUnavailable(path, err)
	}
	return src, nil
}

// store returns the S3 client, building it on first use. A failed build is
// not cached, so a later call retries once credentials or network recover.
func (o *Opener) store(ctx context.Context) (ObjectStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Store != nil {
		return o.Store, nil
	}

	build := o.NewStore
	if build == nil {
		build = func(ctx context.Context, cfg s3.Config) (ObjectStore, error) {
			return s3.NewClient(ctx, cfg)
		}
	}
	store, err := build(ctx, o.S3)
	if err != nil {
		return nil, err
	}
	o.Store = store
	return store, nil
}
