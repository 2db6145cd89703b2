// Package fetch defines the fetch capability the selection core consumes
// and provides the default HTTP implementation of it.
//
// The core never constructs HTTP requests itself: it hands a FetchSpec to a
// Fetcher and receives page content or a *modem.FetchError. The default
// implementation talks to a single modem at a base URL, handles basic and
// HNAP authentication, bounds every request with a timeout and a response
// size cap, and retries transient failures with exponential backoff.
package fetch

import (
	"context"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks -source=fetch.go Fetcher

// Fetcher retrieves page content from a modem according to a FetchSpec.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	// Fetch retrieves the content the spec describes. Transport failures
	// are reported as *modem.FetchError.
	Fetch(ctx context.Context, spec modem.FetchSpec) (modem.PageContent, error)
}

// FetchAll tries the given specs in order and returns everything that could
// be fetched, keyed by request path. Individual failures are tolerated as
// long as at least one spec yields content; if every spec fails, the last
// error is returned. Parsers decide for themselves whether the pages they
// need are present.
func FetchAll(ctx context.Context, f Fetcher, specs []modem.FetchSpec) (map[string]modem.PageContent, error) {
	pages := make(map[string]modem.PageContent, len(specs))
	var lastErr error

	for _, spec := range specs {
		content, err := f.Fetch(ctx, spec)
		if err != nil {
			lastErr = err
			continue
		}
		pages[spec.Path] = content
	}

	if len(pages) == 0 {
		if lastErr == nil {
			lastErr = &modem.FetchError{Err: context.Canceled}
		}
		return nil, lastErr
	}
	return pages, nil
}
