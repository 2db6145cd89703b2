// Package selection decides which parser to use for each modem connection.
// It runs a three-tier resolution: an explicitly configured parser wins
// outright, a cached last-known-good parser is tried next, and a full
// detection sweep over the registry is the fallback.
package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/BowlesCR/cable-modem-monitor/internal/detect"
	"github.com/BowlesCR/cable-modem-monitor/internal/fetch"
	"github.com/BowlesCR/cable-modem-monitor/internal/logger"
	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
	"github.com/BowlesCR/cable-modem-monitor/internal/pipeline"
	"github.com/BowlesCR/cable-modem-monitor/internal/registry"
	"github.com/BowlesCR/cable-modem-monitor/internal/telemetry"
)

// Tier names identify how a parser was chosen for a cycle.
type Tier string

const (
	// TierExplicit means the user pinned the parser in configuration
	TierExplicit Tier = "explicit"
	// TierCached means the last-known-good parser was reused
	TierCached Tier = "cached"
	// TierAutoDetect means the parser was found by a detection sweep
	TierAutoDetect Tier = "auto_detect"
)

// DefaultCycleTimeout bounds a single resolution cycle, including every
// fetch, detection probe, and parse it performs.
const DefaultCycleTimeout = 60 * time.Second

// Request describes one resolution cycle for one modem connection.
type Request struct {
	// ConnectionID identifies the modem connection; it keys the
	// selection cache and deduplicates concurrent cycles.
	ConnectionID string

	// ExplicitParser is the user-pinned parser id, or empty for
	// automatic selection. May be a full "Manufacturer/Name" id or a
	// bare parser name.
	ExplicitParser string

	// Fetcher retrieves pages from this connection's modem.
	Fetcher fetch.Fetcher
}

// Outcome is a completed cycle: the normalized reading plus how the parser
// was chosen.
type Outcome struct {
	Reading *pipeline.Reading
	Parser  string
	Tier    Tier
	CycleID string
}

// Attempt records one parser that was tried and failed during a cycle.
type Attempt struct {
	Parser string
	Tier   Tier
	Err    error
}

// ExplicitParserFailedError is returned when a user-pinned parser fails.
// Explicit selection never falls back to other parsers; the failure is
// surfaced so the user can fix their configuration.
type ExplicitParserFailedError struct {
	Parser string
	Err    error
}

func (e *ExplicitParserFailedError) Error() string {
	return fmt.Sprintf("explicitly configured parser %q failed: %v", e.Parser, e.Err)
}

func (e *ExplicitParserFailedError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when every tier has been tried and no parser
// produced a valid reading. Attempts preserves the order in which parsers
// were tried.
type ExhaustedError struct {
	Connection string
	Attempts   []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("no parser matched connection %q", e.Connection)
	}
	tried := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		tried = append(tried, fmt.Sprintf("%s (%s): %v", a.Parser, a.Tier, a.Err))
	}
	return fmt.Sprintf("no parser produced a valid reading for connection %q; tried: %s",
		e.Connection, strings.Join(tried, "; "))
}

// Coordinator resolves parsers and runs cycles. It is safe for concurrent
// use; cycles for the same connection are collapsed into one.
type Coordinator struct {
	registry *registry.Registry
	cache    *Cache
	pipeline *pipeline.Pipeline
	tracer   trace.Tracer
	timeout  time.Duration

	group singleflight.Group

	mu           sync.Mutex
	lastExplicit map[string]string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCycleTimeout overrides the per-cycle deadline.
func WithCycleTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithTracer attaches a tracer for cycle spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// NewCoordinator creates a Coordinator over a parser registry and a
// selection cache.
func NewCoordinator(reg *registry.Registry, cache *Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:     reg,
		cache:        cache,
		timeout:      DefaultCycleTimeout,
		lastExplicit: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pipeline = pipeline.New(c.tracer)
	return c
}

// Resolve runs one cycle for a connection: choose a parser by tier, fetch
// its pages, parse, validate, and update the cache. Concurrent calls for
// the same connection share a single cycle.
func (c *Coordinator) Resolve(ctx context.Context, req Request) (*Outcome, error) {
	result, err, _ := c.group.Do(req.ConnectionID, func() (any, error) {
		return c.resolve(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome, ok := result.(*Outcome)
	if !ok {
		return nil, fmt.Errorf("unexpected cycle result type %T", result)
	}
	return outcome, nil
}

func (c *Coordinator) resolve(ctx context.Context, req Request) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cycleID := uuid.New().String()
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "selection.cycle",
		trace.WithAttributes(
			telemetry.AttrConnection.String(req.ConnectionID),
			attribute.String("cycle.id", cycleID),
		))
	defer span.End()

	c.noteExplicitConfig(req.ConnectionID, req.ExplicitParser)

	if req.ExplicitParser != "" {
		return c.resolveExplicit(ctx, req, cycleID)
	}

	var attempts []Attempt

	if outcome, halt, err := c.resolveCached(ctx, req, cycleID, &attempts); halt {
		if err != nil {
			telemetry.RecordError(span, err)
		}
		return outcome, err
	}

	outcome, err := c.resolveSweep(ctx, req, cycleID, attempts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return outcome, nil
}

// resolveExplicit runs the pinned parser. It is strict: any failure is
// surfaced without trying other parsers, and the cache is left untouched.
func (c *Coordinator) resolveExplicit(ctx context.Context, req Request, cycleID string) (*Outcome, error) {
	parser := c.registry.Lookup(req.ExplicitParser)
	if parser == nil {
		return nil, &ExplicitParserFailedError{
			Parser: req.ExplicitParser,
			Err:    fmt.Errorf("unknown parser; known parsers: %s", strings.Join(c.registry.Names(), ", ")),
		}
	}

	reading, err := c.runParser(ctx, req.Fetcher, parser)
	if err != nil {
		return nil, &ExplicitParserFailedError{Parser: parser.Descriptor().ID(), Err: err}
	}

	logger.Infow("cycle complete",
		"connection", req.ConnectionID,
		"cycle", cycleID,
		"parser", parser.Descriptor().ID(),
		"tier", TierExplicit)
	return &Outcome{Reading: reading, Parser: parser.Descriptor().ID(), Tier: TierExplicit, CycleID: cycleID}, nil
}

// resolveCached tries the last-known-good parser. halt is true when the
// cycle is over (success, or a context error that must not be masked);
// otherwise the caller falls through to the detection sweep.
func (c *Coordinator) resolveCached(ctx context.Context, req Request, cycleID string, attempts *[]Attempt) (outcome *Outcome, halt bool, err error) {
	entry, ok := c.cache.Get(req.ConnectionID)
	if !ok {
		return nil, false, nil
	}

	parser := c.registry.Lookup(entry.Parser)
	if parser == nil || parser.Descriptor().Status == modem.StatusDeprecated {
		// A cached parser that no longer exists (or was deprecated by an
		// upgrade) is a plain cache miss.
		logger.Debugw("cached parser unusable, falling back to detection",
			"connection", req.ConnectionID, "parser", entry.Parser)
		return nil, false, nil
	}

	reading, runErr := c.runParser(ctx, req.Fetcher, parser)
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, true, ctx.Err()
		}
		logger.Warnw("cached parser failed, falling back to detection",
			"connection", req.ConnectionID,
			"cycle", cycleID,
			"parser", entry.Parser,
			"error", runErr)
		if cacheErr := c.cache.RecordFailure(req.ConnectionID, entry.Parser); cacheErr != nil {
			logger.Warnw("failed to persist selection cache", "error", cacheErr)
		}
		*attempts = append(*attempts, Attempt{Parser: parser.Descriptor().ID(), Tier: TierCached, Err: runErr})
		return nil, false, nil
	}

	if persistErr := c.recordSuccess(ctx, req.ConnectionID, parser.Descriptor().ID()); persistErr != nil {
		logger.Warnw("failed to persist selection cache", "error", persistErr)
	}
	logger.Infow("cycle complete",
		"connection", req.ConnectionID,
		"cycle", cycleID,
		"parser", parser.Descriptor().ID(),
		"tier", TierCached)
	return &Outcome{Reading: reading, Parser: parser.Descriptor().ID(), Tier: TierCached, CycleID: cycleID}, true, nil
}

// resolveSweep runs the detection sweep. A detected parser that then fails
// to parse or validate is skipped and the sweep resumes with the next
// candidate in priority order.
func (c *Coordinator) resolveSweep(ctx context.Context, req Request, cycleID string, attempts []Attempt) (*Outcome, error) {
	detector := detect.New(req.Fetcher)
	candidates := c.registry.Parsers()

	for len(candidates) > 0 {
		detection, err := detector.Sweep(ctx, candidates)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// A sweep that came up empty because the cycle deadline
				// expired is a timeout, not evidence that nothing matches.
				return nil, ctxErr
			}
			if errors.Is(err, modem.ErrNoMatch) {
				return nil, &ExhaustedError{Connection: req.ConnectionID, Attempts: attempts}
			}
			return nil, err
		}

		id := detection.Parser.Descriptor().ID()
		reading, runErr := c.runDetected(ctx, req.Fetcher, detection)
		if runErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warnw("detected parser failed, resuming sweep",
				"connection", req.ConnectionID,
				"cycle", cycleID,
				"parser", id,
				"error", runErr)
			attempts = append(attempts, Attempt{Parser: id, Tier: TierAutoDetect, Err: runErr})
			candidates = candidates[detection.Index+1:]
			continue
		}

		if persistErr := c.recordSuccess(ctx, req.ConnectionID, id); persistErr != nil {
			logger.Warnw("failed to persist selection cache", "error", persistErr)
		}
		logger.Infow("cycle complete",
			"connection", req.ConnectionID,
			"cycle", cycleID,
			"parser", id,
			"tier", TierAutoDetect,
			"reason", detection.Reason)
		return &Outcome{Reading: reading, Parser: id, Tier: TierAutoDetect, CycleID: cycleID}, nil
	}

	return nil, &ExhaustedError{Connection: req.ConnectionID, Attempts: attempts}
}

// runParser fetches the parser's required pages and runs the pipeline.
func (c *Coordinator) runParser(ctx context.Context, fetcher fetch.Fetcher, parser modem.Parser) (*pipeline.Reading, error) {
	pages, err := fetch.FetchAll(ctx, fetcher, parser.RequiredFetches())
	if err != nil {
		return nil, err
	}
	return c.pipeline.Run(ctx, parser, pages)
}

// runDetected reuses the pages already fetched during detection, fetching
// only what the parser requires beyond them.
func (c *Coordinator) runDetected(ctx context.Context, fetcher fetch.Fetcher, detection *detect.Detection) (*pipeline.Reading, error) {
	parser := detection.Parser
	missing := make([]modem.FetchSpec, 0)
	for _, spec := range parser.RequiredFetches() {
		if _, ok := detection.Pages[spec.Path]; !ok {
			missing = append(missing, spec)
		}
	}

	pages := make(map[string]modem.PageContent, len(detection.Pages)+len(missing))
	for path, page := range detection.Pages {
		pages[path] = page
	}
	if len(missing) > 0 {
		fetched, err := fetch.FetchAll(ctx, fetcher, missing)
		if err != nil {
			return nil, err
		}
		for path, page := range fetched {
			pages[path] = page
		}
	}
	return c.pipeline.Run(ctx, parser, pages)
}

// recordSuccess updates the cache after a good cycle. A cycle that was
// cancelled mid-flight must not write: a partial success under a dying
// context is not evidence the parser works.
func (c *Coordinator) recordSuccess(ctx context.Context, connection, parser string) error {
	if ctx.Err() != nil {
		return nil
	}
	return c.cache.RecordSuccess(connection, parser)
}

// noteExplicitConfig invalidates the cache when the user's explicit parser
// setting changes between cycles, including changing back to automatic.
func (c *Coordinator) noteExplicitConfig(connection, explicit string) {
	c.mu.Lock()
	previous, seen := c.lastExplicit[connection]
	c.lastExplicit[connection] = explicit
	c.mu.Unlock()

	if seen && previous != explicit {
		if err := c.cache.Invalidate(connection); err != nil {
			logger.Warnw("failed to invalidate selection cache", "connection", connection, "error", err)
		}
	}
}
