// Package objstore fetches raw bytes (item documents, product images) from
// object-storage URLs over HTTP.
package objstore

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/renwaldo/shopsight/ai/metrics"
)

// ErrNotFound indicates the URL resolved but the object does not exist.
var ErrNotFound = errors.New("object not found")

// Fetcher retrieves raw bytes by URL.
type Fetcher interface {
	// FetchBytes downloads the object at url. Returns the body and the
	// declared content type. A 404 maps to ErrNotFound.
	FetchBytes(ctx context.Context, url string) ([]byte, string, error)
}

// Config configures the HTTP fetcher.
type Config struct {
	Timeout  time.Duration               // per-request timeout (default: 15s)
	Rate     float64                     // max requests per second (default: 10)
	MaxSize  int64                       // max object size in bytes (default: 20 MiB)
	Exporter *metrics.PrometheusExporter // optional
}

type httpFetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxSize  int64
	exporter *metrics.PrometheusExporter
}

// NewHTTPFetcher creates a Fetcher backed by a shared HTTP client with a
// request-rate limit, so a burst of candidate images cannot hammer the
// storage endpoint.
func NewHTTPFetcher(cfg Config) Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perSecond := cfg.Rate
	if perSecond <= 0 {
		perSecond = 10
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 20 << 20
	}

	return &httpFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), int(perSecond)),
		maxSize:  maxSize,
		exporter: cfg.Exporter,
	}
}

func (f *httpFetcher) observe(result string) {
	if f.exporter != nil {
		f.exporter.ObserveImageFetch(result)
	}
}

func (f *httpFetcher) FetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", errors.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errors.Wrapf(err, "invalid object URL %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.observe("error")
		return nil, "", errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		f.observe("not_found")
		return nil, "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		f.observe("error")
		return nil, "", errors.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		f.observe("error")
		return nil, "", errors.Wrapf(err, "failed to read body of %s", url)
	}
	if int64(len(body)) > f.maxSize {
		f.observe("error")
		return nil, "", errors.Errorf("object %s exceeds max size %d", url, f.maxSize)
	}

	f.observe("ok")
	return body, resp.Header.Get("Content-Type"), nil
}
