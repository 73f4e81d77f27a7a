package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mrz1836/pharos-avatars/internal/cache"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

const (
	// DefaultTimeout bounds a remote catalog fetch.
	DefaultTimeout = 30 * time.Second

	maxCatalogSize = 8 << 20
)

// LogWriter is the logging surface the loader needs.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Loader reads catalogs from files or http(s) URLs.
type Loader struct {
	httpClient *http.Client
	userAgent  string
	storage    *cache.FileStorage
	staleness  time.Duration
	logger     LogWriter
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the HTTP client used for remote sources.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.httpClient = client
	}
}

// WithCache keeps remote documents in storage and reuses them for staleness.
func WithCache(storage *cache.FileStorage, staleness time.Duration) Option {
	return func(l *Loader) {
		l.storage = storage
		l.staleness = staleness
	}
}

// WithLogger sets the logger.
func WithLogger(logger LogWriter) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "avatars-catalog/1",
		staleness:  cache.DefaultStaleness,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads a catalog from a file path or http(s) URL.
func Load(ctx context.Context, source string, opts ...Option) (*Catalog, error) {
	return NewLoader(opts...).Load(ctx, source)
}

// Load reads a catalog from a file path or http(s) URL.
func (l *Loader) Load(ctx context.Context, source string) (*Catalog, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, avatarerr.WithDetails(avatarerr.ErrCatalogInvalid, map[string]string{
			"reason": "no catalog source configured",
		})
	}

	if isRemote(source) {
		return l.loadRemote(ctx, source)
	}

	data, err := os.ReadFile(source) //nolint:gosec // catalog path comes from user configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, avatarerr.WithSuggestion(
				avatarerr.WithDetails(avatarerr.ErrNotFound, map[string]string{"catalog": source}),
				"set catalog.source to the metadata JSON file or URL",
			)
		}
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.source = source
	return c, nil
}

func (l *Loader) loadRemote(ctx context.Context, source string) (*Catalog, error) {
	docs := cache.NewDocumentCache()
	if l.storage != nil {
		loaded, err := l.storage.Load()
		if err != nil {
			l.logger.Error("catalog cache %s: %v", l.storage.Path(), err)
		}
		if loaded != nil {
			docs = loaded
		}
		if entry, ok, age := docs.Get(source); ok && age <= l.staleness {
			if c, err := Parse(entry.Body); err == nil {
				l.logger.Debug("catalog %s served from cache (age %s)", source, age.Round(time.Second))
				c.source = source
				return c, nil
			}
		}
	}

	data, fetchErr := l.fetch(ctx, source)
	if fetchErr == nil {
		c, err := Parse(data)
		if err != nil {
			return nil, err
		}
		c.source = source
		if l.storage != nil {
			docs.Set(cache.Entry{Source: source, Body: data})
			if n := docs.Prune(cache.DefaultMaxAge); n > 0 {
				l.logger.Debug("dropped %d expired catalog cache entries", n)
			}
			if err := l.storage.Save(docs); err != nil {
				l.logger.Error("saving catalog cache: %v", err)
			}
		}
		return c, nil
	}

	if entry, ok, _ := docs.Get(source); ok {
		if c, err := Parse(entry.Body); err == nil {
			l.logger.Error("catalog fetch failed, using cached copy: %v", fetchErr)
			c.source = source
			c.stale = true
			return c, nil
		}
	}
	return nil, fetchErr
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, avatarerr.WithCause(avatarerr.ErrCatalogInvalid, err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req) //nolint:gosec // URL is the configured catalog source
	if err != nil {
		return nil, avatarerr.WithCause(avatarerr.ErrNetworkError, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, avatarerr.WithDetails(avatarerr.ErrNetworkError, map[string]string{
			"catalog": source,
			"status":  resp.Status,
		})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, avatarerr.WithCause(avatarerr.ErrNetworkError, err)
	}
	return data, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
