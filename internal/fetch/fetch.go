package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/ontomart/ontomart/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Document is an acquired ontology document on the local filesystem. Temp
// marks files this package downloaded; Close removes those and leaves
// caller-owned local paths alone. Close is safe to call more than once.
type Document struct {
	Path string
	Temp bool
}

// Close releases the backing file if it was downloaded.
func (d *Document) Close() error {
	if d == nil || !d.Temp {
		return nil
	}
	if err := os.Remove(d.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StatusError reports a non-2xx response from the remote server.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Fetcher resolves ontology document sources. Remote http(s) URLs are
// downloaded to a temp file with bounded retries and a politeness rate
// limit; anything else is treated as a local filesystem path and passed
// through untouched.
type Fetcher struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	cfg     config.FetchConfig
	log     *zap.Logger
}

// New creates a Fetcher from configuration.
func New(cfg config.FetchConfig, logger *zap.Logger) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = cfg.Timeout
	// zap owns our logging; the default retryablehttp logger is noisy.
	client.Logger = nil

	rps := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		rps = rate.Inf
	}

	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(rps, 1),
		cfg:     cfg,
		log:     logger.Named("fetch"),
	}
}

// Fetch resolves source into a readable local file.
func (f *Fetcher) Fetch(ctx context.Context, source string) (*Document, error) {
	if isRemote(source) {
		return f.download(ctx, source)
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("local source %q: %w", source, err)
	}
	return &Document{Path: source}, nil
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (*Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(f.cfg.TempDir, "ontomart-*"+suffixFor(rawURL))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxBodyBytes > 0 {
		// One byte of headroom so an at-the-limit document is distinguishable
		// from an oversized one.
		body = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1)
	}

	written, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()

	switch {
	case copyErr != nil:
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write %s: %w", tmp.Name(), copyErr)
	case closeErr != nil:
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("close %s: %w", tmp.Name(), closeErr)
	case f.cfg.MaxBodyBytes > 0 && written > f.cfg.MaxBodyBytes:
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("download %s: document exceeds %d bytes", rawURL, f.cfg.MaxBodyBytes)
	}

	f.log.Debug("Downloaded ontology document",
		zap.String("url", rawURL),
		zap.String("path", tmp.Name()),
		zap.Int64("bytes", written),
	)
	return &Document{Path: tmp.Name(), Temp: true}, nil
}

// suffixFor keeps the source extension on the temp file so the parser can
// detect the serialization from it. Turtle is assumed when the URL path has
// no extension, matching the most common publishing convention.
func suffixFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".ttl"
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return ".ttl"
}
