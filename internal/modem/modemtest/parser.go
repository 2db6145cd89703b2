// Package modemtest provides configurable fake parsers for tests.
package modemtest

import (
	"strings"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// FakeParser is a scriptable modem.Parser for registry, detector and
// coordinator tests. Zero value detects nothing and parses nothing; set the
// hooks to script behavior.
type FakeParser struct {
	Desc modem.Descriptor

	// DetectMarker makes Detect match any content containing it. DetectFn
	// takes precedence when set.
	DetectMarker string
	DetectFn     func(modem.PageContent) modem.DetectionResult

	// ParseFn overrides the default parse, which returns Result (or a
	// ParseError when Result is nil).
	ParseFn func(map[string]modem.PageContent) (*modem.ParseResult, error)
	Result  *modem.ParseResult

	// DetectCalls counts Detect invocations, for short-circuit assertions.
	DetectCalls int
}

// NewFakeParser returns a fake with a minimal descriptor and one fetch spec.
func NewFakeParser(manufacturer, name string, priority int) *FakeParser {
	return &FakeParser{
		Desc: modem.Descriptor{
			Name:         name,
			Manufacturer: manufacturer,
			Models:       []string{name},
			Priority:     priority,
			Status:       modem.StatusVerified,
			Fetches: []modem.FetchSpec{
				{Path: "/", Auth: modem.AuthNone},
			},
		},
	}
}

// Descriptor implements modem.Parser.
func (p *FakeParser) Descriptor() modem.Descriptor {
	return p.Desc
}

// Detect implements modem.Parser.
func (p *FakeParser) Detect(content modem.PageContent) modem.DetectionResult {
	p.DetectCalls++
	if p.DetectFn != nil {
		return p.DetectFn(content)
	}
	if p.DetectMarker != "" && strings.Contains(string(content.Body), p.DetectMarker) {
		return modem.Match("marker " + p.DetectMarker)
	}
	return modem.NoMatch("no marker")
}

// RequiredFetches implements modem.Parser.
func (p *FakeParser) RequiredFetches() []modem.FetchSpec {
	return p.Desc.Fetches
}

// Parse implements modem.Parser.
func (p *FakeParser) Parse(content map[string]modem.PageContent) (*modem.ParseResult, error) {
	if p.ParseFn != nil {
		return p.ParseFn(content)
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return nil, modem.NewParseError(p.Desc.Name, "fake parser has no scripted result")
}

// HealthyResult returns a ParseResult with the given channel counts, every
// value inside the shared validation envelope.
func HealthyResult(downstream, upstream int) *modem.ParseResult {
	r := modem.NewParseResult()
	for i := 0; i < downstream; i++ {
		r.Downstream = append(r.Downstream, modem.DownstreamChannel{
			ChannelID:   i + 1,
			LockStatus:  "Locked",
			Modulation:  "QAM256",
			FrequencyHz: int64(441000000 + i*6000000),
			PowerDBmV:   1.5,
			SNRdB:       40.0,
		})
	}
	for i := 0; i < upstream; i++ {
		r.Upstream = append(r.Upstream, modem.UpstreamChannel{
			ChannelID:   i + 1,
			LockStatus:  "Locked",
			Modulation:  "SC-QAM",
			FrequencyHz: int64(17600000 + i*6400000),
			PowerDBmV:   45.0,
			SymbolRate:  5120,
		})
	}
	return r
}
