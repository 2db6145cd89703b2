// Package detect runs candidate parsers' detection predicates against
// fetched modem content to find the one that matches.
//
// The sweep walks the registry's ordered list and stops at the first
// positive match, which is what makes registry order (and therefore parser
// priority) load-bearing rather than cosmetic. Candidates whose required
// pages cannot be fetched are skipped, not treated as sweep failures: an
// HNAP-only parser probing an HTML-only modem simply did not match.
package detect

import (
	"context"

	"github.com/BowlesCR/cable-modem-monitor/internal/fetch"
	"github.com/BowlesCR/cable-modem-monitor/internal/logger"
	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// Detection is a positive sweep outcome: the matched parser plus the pages
// fetched for it, so the caller can parse without refetching. Index is the
// parser's position in the candidate slice, letting the caller resume the
// sweep after this candidate when parse or validation later fails.
type Detection struct {
	Parser modem.Parser
	Pages  map[string]modem.PageContent
	Reason string
	Index  int
}

// Detector sweeps parsers against a modem through a fetch capability.
type Detector struct {
	fetcher fetch.Fetcher

	// pageMemo caches fetches within one sweep keyed by path+auth, since
	// many parsers probe the same root or status pages.
	pageMemo map[string]fetchOutcome
}

type fetchOutcome struct {
	content modem.PageContent
	err     error
}

// New creates a detector over the given fetch capability. A detector is
// scoped to one sweep; create a fresh one per cycle.
func New(fetcher fetch.Fetcher) *Detector {
	return &Detector{
		fetcher:  fetcher,
		pageMemo: make(map[string]fetchOutcome),
	}
}

// Sweep runs detection across the ordered candidates and returns the first
// match. Fetch failures skip the affected candidate. If no candidate
// matches, the error is modem.ErrNoMatch.
func (d *Detector) Sweep(ctx context.Context, candidates []modem.Parser) (*Detection, error) {
	for i, parser := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		detection := d.tryCandidate(ctx, parser)
		if detection != nil {
			detection.Index = i
			return detection, nil
		}
	}
	return nil, modem.ErrNoMatch
}

// tryCandidate fetches the candidate's declared pages and runs its detection
// predicate on each until one matches. Detection is pure, so running it on
// every fetched page is side-effect free.
func (d *Detector) tryCandidate(ctx context.Context, parser modem.Parser) *Detection {
	desc := parser.Descriptor()

	pages := make(map[string]modem.PageContent)
	for _, spec := range parser.RequiredFetches() {
		content, err := d.fetchMemo(ctx, spec)
		if err != nil {
			logger.Debugw("Skipping unfetchable page during detection",
				"parser", desc.ID(), "path", spec.Path, "error", err)
			continue
		}
		pages[spec.Path] = content
	}
	if len(pages) == 0 {
		logger.Debugw("No pages fetchable for candidate, treating as no match", "parser", desc.ID())
		return nil
	}

	for _, spec := range parser.RequiredFetches() {
		content, ok := pages[spec.Path]
		if !ok {
			continue
		}
		result := parser.Detect(content)
		if result.Matched {
			logger.Infow("Parser matched device content",
				"parser", desc.ID(), "path", spec.Path, "reason", result.Reason)
			return &Detection{Parser: parser, Pages: pages, Reason: result.Reason}
		}
	}
	return nil
}

func (d *Detector) fetchMemo(ctx context.Context, spec modem.FetchSpec) (modem.PageContent, error) {
	key := string(spec.Auth) + " " + spec.Path
	if outcome, ok := d.pageMemo[key]; ok {
		return outcome.content, outcome.err
	}

	content, err := d.fetcher.Fetch(ctx, spec)
	d.pageMemo[key] = fetchOutcome{content: content, err: err}
	return content, err
}
