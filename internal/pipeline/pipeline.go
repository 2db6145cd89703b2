// Package pipeline executes a resolved parser and normalizes its output.
//
// The pipeline is the only place parse and validation run: parse decodes the
// fetched pages, validation applies the parser's own bounds when it
// implements modem.ChannelValidator and the shared envelope otherwise, and
// the merge step produces the flat reading shape consumed by the host
// (channel sequences at the two reserved keys, system fields spread
// alongside them). Validation failures fail the cycle; they are not
// advisory.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
	"github.com/BowlesCR/cable-modem-monitor/internal/telemetry"
)

// Reading is the normalized output of one successful cycle.
type Reading struct {
	// Parser is the id of the parser that produced the reading
	Parser string

	// CollectedAt is when the parse completed
	CollectedAt time.Time

	// Result holds the channel sequences and system fields
	Result *modem.ParseResult
}

// MarshalJSON flattens the reading: the two reserved channel keys plus every
// system field at the top level.
func (r *Reading) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Result.System)+4)
	for k, v := range r.Result.System {
		flat[k] = v
	}
	flat[modem.KeyDownstream] = r.Result.Downstream
	flat[modem.KeyUpstream] = r.Result.Upstream
	flat["parser"] = r.Parser
	flat["collected_at"] = r.CollectedAt.Format(time.RFC3339)
	return json.Marshal(flat)
}

// Pipeline runs parse and validation for resolved parsers.
type Pipeline struct {
	tracer trace.Tracer
}

// New creates a pipeline. tracer may be nil to disable tracing.
func New(tracer trace.Tracer) *Pipeline {
	return &Pipeline{tracer: tracer}
}

// Run executes the parser against the fetched pages and returns the
// normalized reading, or a *modem.ParseError / *modem.ValidationError.
func (p *Pipeline) Run(
	ctx context.Context, parser modem.Parser, pages map[string]modem.PageContent,
) (*Reading, error) {
	desc := parser.Descriptor()

	_, span := telemetry.StartSpan(ctx, p.tracer, "pipeline.run",
		trace.WithAttributes(telemetry.AttrParser.String(desc.ID())))
	defer span.End()

	result, err := parser.Parse(pages)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// An absent sequence is a parse failure, not an empty reading.
	if result == nil || result.Downstream == nil || result.Upstream == nil {
		err := modem.NewParseError(desc.Name, "parser returned absent channel sequences")
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := validate(parser, result); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := checkReservedKeys(desc, result); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		telemetry.AttrDownstream.Int(len(result.Downstream)),
		telemetry.AttrUpstream.Int(len(result.Upstream)),
	)

	return &Reading{
		Parser:      desc.ID(),
		CollectedAt: time.Now().UTC(),
		Result:      result,
	}, nil
}

// validate prefers the parser's model-specific bounds over the shared
// envelope.
func validate(parser modem.Parser, result *modem.ParseResult) error {
	if cv, ok := parser.(modem.ChannelValidator); ok {
		return cv.ValidateChannels(result)
	}
	return modem.ValidateChannels(parser.Descriptor().Name, result)
}

// checkReservedKeys rejects system fields that would shadow the channel
// sequences in the flat result. Registration already checks the declared
// key set; this catches parsers emitting keys they never declared.
func checkReservedKeys(desc modem.Descriptor, result *modem.ParseResult) error {
	for key := range result.System {
		if key == modem.KeyDownstream || key == modem.KeyUpstream {
			return &modem.ValidationError{
				Parser:     desc.Name,
				Constraint: fmt.Sprintf("system field %q collides with a reserved channel key", key),
			}
		}
	}
	return nil
}
