package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codepage/codepage/pkg/ingest/core"
)

// HTTPSource reads a resource from an HTTP/HTTPS URL. Each Open issues a new
// GET, so the resource can be re-read by every detector.
type HTTPSource struct {
	url     *url.URL
	client  *http.Client
	headers map[string]string
	auth    *BasicAuth

	mu       sync.RWMutex
	format   core.Format
	size     int64
	modTime  time.Time
	metadata map[string]string
}

// HTTPSourceOptions configures HTTP source behavior.
type HTTPSourceOptions struct {
	// Custom HTTP client
	Client *http.Client

	// Custom headers
	Headers map[string]string

	// Timeout applies when Client is nil.
	Timeout time.Duration

	// Auth
	BasicAuth   *BasicAuth
	BearerToken string
}

// BasicAuth for HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// NewHTTPSource creates an HTTP source from a URL.
func NewHTTPSource(rawURL string, opts *HTTPSourceOptions) (*HTTPSource, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}

	if opts == nil {
		opts = &HTTPSourceOptions{}
	}

	s := &HTTPSource{
		url:      parsed,
		auth:     opts.BasicAuth,
		headers:  make(map[string]string),
		metadata: make(map[string]string),
		size:     -1, // Unknown until the first response
		format:   formatFromExtension(strings.ToLower(path.Ext(parsed.Path))),
	}

	if opts.Client != nil {
		s.client = opts.Client
	} else {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		s.client = &http.Client{Timeout: timeout}
	}

	for k, v := range opts.Headers {
		s.headers[k] = v
	}
	if opts.BearerToken != "" {
		s.headers["Authorization"] = "Bearer " + opts.BearerToken
	}
	if s.auth != nil {
		s.metadata["auth_type"] = "basic"
	}

	return s, nil
}

func (s *HTTPSource) ID() string       { return s.url.String() }
func (s *HTTPSource) Location() string { return s.url.String() }

func (s *HTTPSource) Format() core.Format {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.format
}

func (s *HTTPSource) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *HTTPSource) ModTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modTime
}

// Metadata returns HTTP metadata; content_type is set after the first Open.
func (s *HTTPSource) Metadata() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// Open fetches the URL and returns the response body.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.auth != nil {
		req.SetBasicAuth(s.auth.Username, s.auth.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	s.updateMetadata(resp)
	return resp.Body, nil
}

func (s *HTTPSource) updateMetadata(resp *http.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
			s.size = size
		}
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			s.modTime = t
		}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		s.metadata["content_type"] = ct
		if f := formatFromContentType(ct); f != core.FormatUnknown {
			s.format = f
		}
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		s.metadata["etag"] = etag
	}
}

// Verify interface compliance
var _ core.Source = (*HTTPSource)(nil)
