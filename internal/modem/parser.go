package modem

// Parser is the capability contract every modem decoder implements.
//
// Implementations must be stateless between calls: Detect is pure and must
// not fetch anything, and Parse only sees content the caller already
// retrieved according to RequiredFetches. A parser that needs different
// numeric bounds than the shared envelope additionally implements
// ChannelValidator.
type Parser interface {
	// Descriptor returns the parser's static identity
	Descriptor() Descriptor

	// Detect reports whether the fetched content belongs to this parser's
	// device. It must return quickly, must not panic on foreign content,
	// and must return a confident negative rather than guessing.
	Detect(content PageContent) DetectionResult

	// RequiredFetches returns the pages the parser needs, preferred first.
	// The remainder are fallbacks tried in order.
	RequiredFetches() []FetchSpec

	// Parse decodes fetched content, keyed by request path, into the
	// normalized result. It fails with a *ParseError when expected
	// structural markers are absent.
	Parse(content map[string]PageContent) (*ParseResult, error)
}

// ChannelValidator is the optional per-parser override for channel
// validation. Parsers that do not implement it get ValidateChannels, the
// shared envelope.
type ChannelValidator interface {
	// ValidateChannels checks the decoded channels against model-specific
	// bounds, returning a *ValidationError on the first violation.
	ValidateChannels(result *ParseResult) error
}
