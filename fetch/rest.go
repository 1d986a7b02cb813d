package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eak1mov/go-libmap/tile"
)

var ErrInvalidTemplate = errors.New("libmap: invalid url template")

const DefaultUserAgent = "go-libmap/1.0"

// REST fetches tiles over HTTP from a URL template such as
// "https://tile.example.com/{z}/{x}/{y}.pbf". The {-y} placeholder
// substitutes the TMS row (2^z - 1 - y).
type REST struct {
	template string
	client   *http.Client
	headers  map[string]string
	logger   *slog.Logger
}

type restConfig struct {
	Client    *http.Client
	Headers   map[string]string
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

type Option func(*restConfig)

// WithClient sets the HTTP client. WithTimeout is ignored when set.
func WithClient(client *http.Client) Option {
	return func(c *restConfig) { c.Client = client }
}

func WithHeaders(headers map[string]string) Option {
	return func(c *restConfig) { c.Headers = headers }
}

func WithUserAgent(userAgent string) Option {
	return func(c *restConfig) { c.UserAgent = userAgent }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *restConfig) { c.Timeout = timeout }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *restConfig) { c.Logger = logger }
}

// NewREST creates a REST fetcher for the given URL template.
func NewREST(template string, opts ...Option) (*REST, error) {
	if !strings.Contains(template, "{z}") || !strings.Contains(template, "{x}") ||
		!(strings.Contains(template, "{y}") || strings.Contains(template, "{-y}")) {
		return nil, fmt.Errorf("%w: %q must contain {z}, {x} and {y} or {-y}", ErrInvalidTemplate, template)
	}

	config := restConfig{
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
		Logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	headers := map[string]string{
		"Accept-Encoding": "gzip",
		"User-Agent":      config.UserAgent,
	}
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &REST{
		template: template,
		client:   client,
		headers:  headers,
		logger:   config.Logger,
	}, nil
}

// URL returns the request URL for index.
func (f *REST) URL(index tile.Index) string {
	tmsY := (int64(1) << index.Z) - 1 - index.Y
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(index.Z), 10),
		"{x}", strconv.FormatInt(index.X, 10),
		"{y}", strconv.FormatInt(index.Y, 10),
		"{-y}", strconv.FormatInt(tmsY, 10),
	).Replace(f.template)
}

func (f *REST) Fetch(ctx context.Context, index tile.Index) ([]byte, error) {
	url := f.URL(index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var body io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body from %s: %w", url, err)
		}
		defer gzReader.Close()
		body = gzReader
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}

	f.logger.Debug("libmap: tile fetched", "tile", index.String(), "bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}
