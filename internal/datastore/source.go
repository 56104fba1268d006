package datastore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/retry"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// Source produces the full dataset in one call
type Source interface {
	Name() string
	Records(ctx context.Context) ([]models.CarRecord, error)
}

// Cache stores raw dataset bytes fetched from a remote source
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
}

// FileSource reads a local JSON or CSV file
type FileSource struct {
	Path string
}

// NewFileSource creates a file source
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

func (s *FileSource) Records(ctx context.Context) ([]models.CarRecord, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, unreachable(err)
	}
	return Decode(data, FormatFromName(filepath.Ext(s.Path)))
}

// HTTPSource fetches the dataset over HTTP, retrying transient failures
type HTTPSource struct {
	URL    string
	client *http.Client
	policy *retry.RetryPolicy
	cache  Cache
}

// HTTPOption configures an HTTPSource
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(p *retry.RetryPolicy) HTTPOption {
	return func(s *HTTPSource) { s.policy = p }
}

// WithCache serves and stores fetched bytes through c
func WithCache(c Cache) HTTPOption {
	return func(s *HTTPSource) { s.cache = c }
}

// NewHTTPSource creates an HTTP source
func NewHTTPSource(rawURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		URL:    rawURL,
		client: &http.Client{Timeout: 15 * time.Second},
		policy: retry.NewRetryPolicy(3, 500*time.Millisecond),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Name() string {
	return s.URL
}

func (s *HTTPSource) Records(ctx context.Context) ([]models.CarRecord, error) {
	format := FormatFromName(s.URL)

	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, s.URL)
		if err != nil {
			fmt.Printf("⚠️  Dataset cache read failed: %v\n", err)
		} else if ok {
			return Decode(data, format)
		}
	}

	var data []byte
	err := s.policy.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("server returned %d", resp.StatusCode))
		}
		if ct := resp.Header.Get("Content-Type"); ct != "" && strings.Contains(ct, "csv") {
			format = FormatCSV
		}

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, unreachable(err)
	}

	records, err := Decode(data, format)
	if err != nil {
		return nil, err
	}

	// Only well-formed payloads are cached
	if s.cache != nil {
		if err := s.cache.Put(ctx, s.URL, data); err != nil {
			fmt.Printf("⚠️  Dataset cache write failed: %v\n", err)
		}
	}
	return records, nil
}

// SourceOptions carries what ParseSourceURI needs beyond the URI itself
type SourceOptions struct {
	Table   string // PostgreSQL table
	OrderBy string // PostgreSQL ordering column
	HTTP    []HTTPOption
}

// ParseSourceURI selects a Source by scheme:
// file paths, file://, http(s)://, postgres:// and redis://host/db?key=name
func ParseSourceURI(uri string, opts SourceOptions) (Source, error) {
	if uri == "" {
		return nil, fmt.Errorf("no data source configured")
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." parses with a one-letter scheme
		return NewFileSource(uri), nil
	}

	switch u.Scheme {
	case "file":
		return NewFileSource(u.Path), nil
	case "http", "https":
		return NewHTTPSource(uri, opts.HTTP...), nil
	case "postgres", "postgresql":
		return NewPostgresSource(uri, opts.Table, opts.OrderBy), nil
	case "redis", "rediss":
		return NewRedisSourceFromURL(uri)
	default:
		return nil, fmt.Errorf("unsupported data source scheme %q", u.Scheme)
	}
}
