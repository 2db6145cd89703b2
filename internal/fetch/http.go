package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

const (
	// DefaultTimeout is the per-request timeout. Modem web interfaces are
	// slow but local; anything beyond this is a stuck device.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize caps response bodies (2MB). Status pages are tens of
	// kilobytes; the cap guards against a misbehaving device streaming
	// forever.
	MaxResponseSize = 2 * 1024 * 1024

	// UserAgent is the user agent string for requests to the modem
	UserAgent = "cable-modem-monitor/1.0"

	// maxRetries bounds the backoff retry loop per fetch
	maxRetries = 2
)

// Options configures the default HTTP fetcher for one modem connection.
type Options struct {
	// BaseURL is the modem management interface, e.g. "http://192.168.100.1"
	BaseURL string

	// Username and Password are the device credentials, if any
	Username string
	Password string

	// Timeout overrides DefaultTimeout when non-zero
	Timeout time.Duration

	// InsecureSkipVerify accepts the self-signed certificates consumer
	// modems ship with. Defaults to true for https base URLs.
	InsecureSkipVerify bool
}

// HTTPFetcher is the default Fetcher implementation. It owns the cookie jar
// so form and HNAP sessions survive across fetches within a cycle.
type HTTPFetcher struct {
	opts   Options
	client *http.Client
	hnap   *hnapSession
}

// NewHTTPFetcher creates a fetcher for one modem connection.
func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Jar:     jar,
		Transport: &http.Transport{
			// Consumer modems serve https with self-signed certificates
			TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}, // #nosec G402
		},
	}

	f := &HTTPFetcher{opts: opts, client: client}
	f.hnap = newHNAPSession(f)
	return f, nil
}

// Fetch retrieves the content the spec describes.
func (f *HTTPFetcher) Fetch(ctx context.Context, spec modem.FetchSpec) (modem.PageContent, error) {
	if spec.Auth == modem.AuthHNAP {
		body, err := f.hnap.fetch(ctx, spec)
		if err != nil {
			return modem.PageContent{}, &modem.FetchError{Path: spec.Path, Auth: spec.Auth, Err: err}
		}
		return modem.PageContent{Path: spec.Path, Body: body}, nil
	}

	body, err := f.get(ctx, spec)
	if err != nil {
		return modem.PageContent{}, &modem.FetchError{Path: spec.Path, Auth: spec.Auth, Err: err}
	}
	return modem.PageContent{Path: spec.Path, Body: body}, nil
}

// get performs a GET with retry on transient failures.
func (f *HTTPFetcher) get(ctx context.Context, spec modem.FetchSpec) ([]byte, error) {
	operation := func() ([]byte, error) {
		body, err := f.getOnce(ctx, spec)
		if err != nil {
			// Context errors are permanent; everything else a stuck
			// modem produces is worth one more try.
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		return body, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetries+1),
	)
}

func (f *HTTPFetcher) getOnce(ctx context.Context, spec modem.FetchSpec) ([]byte, error) {
	url := f.opts.BaseURL + spec.Path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	if spec.Auth == modem.AuthBasic && f.opts.Username != "" {
		req.SetBasicAuth(f.opts.Username, f.opts.Password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	return readCapped(resp.Body)
}

// readCapped reads at most MaxResponseSize bytes and rejects anything
// larger.
func readCapped(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
