// Package poller runs the periodic polling loops, one per configured modem
// connection. Each loop resolves a parser, collects a reading and publishes
// it to metrics on its own schedule.
package poller

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BowlesCR/cable-modem-monitor/internal/fetch"
	"github.com/BowlesCR/cable-modem-monitor/internal/logger"
	"github.com/BowlesCR/cable-modem-monitor/internal/selection"
	"github.com/BowlesCR/cable-modem-monitor/internal/telemetry"
)

// Cycle outcome labels for metrics.
const (
	outcomeError     = "error"
	outcomeAbandoned = "abandoned"
)

// Connection is one modem to poll.
type Connection struct {
	// Name identifies the connection; it keys the selection cache and
	// labels metrics.
	Name string

	// ExplicitParser pins a parser, empty for automatic selection.
	ExplicitParser string

	// Fetcher talks to this modem.
	Fetcher fetch.Fetcher

	// Interval is the polling period.
	Interval time.Duration
}

// Poller manages the polling loops for all connections.
type Poller interface {
	// Start begins polling every connection. Blocks until the context is
	// cancelled.
	Start(ctx context.Context) error

	// Stop gracefully stops all polling loops.
	Stop() error
}

// defaultPoller is the default implementation of Poller.
type defaultPoller struct {
	coordinator *selection.Coordinator
	connections []Connection

	cancelFunc context.CancelFunc
	done       chan struct{}

	metrics *telemetry.Metrics
}

// Option is a function that configures the poller.
type Option func(*defaultPoller)

// WithMetrics attaches cycle and channel metrics.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(p *defaultPoller) {
		p.metrics = metrics
	}
}

// New creates a poller over a selection coordinator and connections.
func New(coordinator *selection.Coordinator, connections []Connection, opts ...Option) Poller {
	p := &defaultPoller{
		coordinator: coordinator,
		connections: connections,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// jitteredInterval offsets the interval by up to ±10% so multiple
// connections drift apart instead of hammering the scheduler together.
func jitteredInterval(interval time.Duration) time.Duration {
	jitter := interval / 10
	if jitter <= 0 {
		return interval
	}
	//nolint:gosec // G404: non-cryptographic randomness is fine for scheduling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return interval + offset
}

// Start begins polling every connection and blocks until ctx is cancelled.
func (p *defaultPoller) Start(ctx context.Context) error {
	logger.Infow("starting poller", "connections", len(p.connections))

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	var wg sync.WaitGroup
	for _, conn := range p.connections {
		wg.Add(1)
		go func(conn Connection) {
			defer wg.Done()
			p.pollLoop(pollCtx, conn)
		}(conn)
	}

	wg.Wait()
	close(p.done)
	logger.Info("poller shut down")
	return nil
}

// Stop gracefully stops all polling loops.
func (p *defaultPoller) Stop() error {
	if p.cancelFunc != nil {
		logger.Info("stopping poller")
		p.cancelFunc()
		<-p.done
	}
	return nil
}

// pollLoop runs cycles for one connection until the context is cancelled.
// The first cycle runs immediately; subsequent ticks are re-jittered.
func (p *defaultPoller) pollLoop(ctx context.Context, conn Connection) {
	logger.Infow("polling modem", "connection", conn.Name, "interval", conn.Interval)

	ticker := time.NewTicker(jitteredInterval(conn.Interval))
	defer ticker.Stop()

	p.runCycle(ctx, conn)

	for {
		select {
		case <-ticker.C:
			p.runCycle(ctx, conn)
			ticker.Reset(jitteredInterval(conn.Interval))
		case <-ctx.Done():
			logger.Debugw("polling loop stopping", "connection", conn.Name)
			return
		}
	}
}

// runCycle resolves and collects one reading. The cycle is bounded by the
// poll interval: a cycle still in flight when the next tick is due is
// abandoned rather than allowed to pile up.
func (p *defaultPoller) runCycle(ctx context.Context, conn Connection) {
	cycleCtx, cancel := context.WithTimeout(ctx, conn.Interval)
	defer cancel()

	outcome, err := p.coordinator.Resolve(cycleCtx, selection.Request{
		ConnectionID:   conn.Name,
		ExplicitParser: conn.ExplicitParser,
		Fetcher:        conn.Fetcher,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		label := outcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			label = outcomeAbandoned
			logger.Warnw("cycle abandoned, poll interval elapsed", "connection", conn.Name)
		} else {
			logger.Errorw("cycle failed", "connection", conn.Name, "error", err)
		}
		if p.metrics != nil {
			p.metrics.RecordFailure(conn.Name, label)
		}
		return
	}

	if p.metrics != nil {
		p.metrics.RecordReading(
			conn.Name,
			string(outcome.Tier),
			outcome.Reading.Result,
			float64(outcome.Reading.CollectedAt.Unix()),
		)
	}
}
