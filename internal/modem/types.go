package modem

// AuthMethod identifies the authentication scheme a fetch requires.
// The transport collaborator interprets these; the core only declares them.
type AuthMethod string

const (
	// AuthNone means the page is reachable without credentials
	AuthNone AuthMethod = "none"

	// AuthBasic means HTTP basic authentication
	AuthBasic AuthMethod = "basic"

	// AuthForm means form-based login followed by a session cookie
	AuthForm AuthMethod = "form"

	// AuthHNAP means the HNAP challenge/response handshake used by
	// SOAP/JSON management APIs
	AuthHNAP AuthMethod = "hnap"
)

// Status is the lifecycle/verification state of a parser.
type Status string

const (
	// StatusInProgress means the parser is under active development
	StatusInProgress Status = "in-progress"

	// StatusAwaitingVerification means the parser is complete but has not
	// been confirmed against a real device
	StatusAwaitingVerification Status = "awaiting-verification"

	// StatusVerified means the parser has been confirmed by a maintainer
	// or user report against real hardware
	StatusVerified Status = "verified"

	// StatusBroken means the parser is known not to work against current
	// firmware
	StatusBroken Status = "broken"

	// StatusDeprecated means the parser is superseded and kept only so old
	// cache entries can be recognized
	StatusDeprecated Status = "deprecated"
)

// Parser priority levels. Higher priority parsers are tried first within a
// manufacturer during detection.
const (
	// PriorityGeneric is for fallback parsers that match a whole product
	// family loosely
	PriorityGeneric = 50

	// PriorityModel is for parsers that target a specific model
	PriorityModel = 100

	// PriorityAPI is for API-based variants (HNAP and friends) that should
	// win over screen-scraping parsers for the same model
	PriorityAPI = 101
)

// Capability names the data a parser can provide. The host platform uses
// these to decide which sensors to create.
type Capability string

const (
	CapDownstreamChannels Capability = "downstream_channels"
	CapUpstreamChannels   Capability = "upstream_channels"
	CapSystemUptime       Capability = "system_uptime"
	CapSoftwareVersion    Capability = "software_version"
	CapHardwareVersion    Capability = "hardware_version"
	CapRestart            Capability = "restart"
)

// Reserved top-level keys in the normalized result. A parser whose declared
// system keys collide with these is rejected at registration time.
const (
	// KeyDownstream is the reserved key for the downstream channel sequence
	KeyDownstream = "downstream"

	// KeyUpstream is the reserved key for the upstream channel sequence
	KeyUpstream = "upstream"
)

// FetchSpec is one (path, auth) pair a parser needs fetched. A parser may
// declare several; they are tried in order until one yields usable content.
type FetchSpec struct {
	// Path is the request path on the modem, e.g. "/MotoConnection.asp"
	Path string

	// Auth is the authentication scheme the path requires
	Auth AuthMethod

	// AuthRequired is false for pages that are worth probing without
	// credentials (several modems expose their software-info page openly)
	AuthRequired bool

	// HNAPActions lists the SOAP actions to batch into a GetMultipleHNAPs
	// call when Auth is AuthHNAP. The transport performs the handshake and
	// returns the combined JSON response as the page body.
	HNAPActions []string
}

// PageContent is a fetched page body plus where it came from.
type PageContent struct {
	// Path is the request path that produced this content
	Path string

	// Body is the raw response body
	Body []byte
}

// Descriptor is the static identity of a parser. Immutable after
// registration.
type Descriptor struct {
	// Name uniquely identifies the parser within its manufacturer,
	// e.g. "Motorola MB7621"
	Name string

	// Manufacturer groups parsers for ordering, e.g. "Motorola"
	Manufacturer string

	// Models lists the device model identifiers this parser supports
	Models []string

	// Priority orders parsers within a manufacturer, higher first
	Priority int

	// Fetches lists the pages the parser needs, preferred first
	Fetches []FetchSpec

	// Status is the lifecycle/verification state
	Status Status

	// VerificationSource optionally records who or what confirmed the
	// parser (issue link, maintainer note)
	VerificationSource string

	// Capabilities declares the data this parser can provide
	Capabilities []Capability

	// SystemKeys declares every key the parser may emit in
	// ParseResult.System. Checked against the reserved channel keys at
	// registration so collisions surface at startup, not at merge time.
	SystemKeys []string
}

// ID returns the registry identity of the parser. Manufacturer plus name is
// the uniqueness key; two registrations sharing it are a configuration error.
func (d Descriptor) ID() string {
	return d.Manufacturer + "/" + d.Name
}

// DetectionResult is the outcome of running a parser's detection predicate
// against fetched content. It carries no side effects.
type DetectionResult struct {
	// Matched reports whether the content belongs to this parser's device
	Matched bool

	// Reason optionally explains what marker matched (or why not), for
	// diagnostics
	Reason string
}

// Match is a convenience constructor for a positive detection.
func Match(reason string) DetectionResult {
	return DetectionResult{Matched: true, Reason: reason}
}

// NoMatch is a convenience constructor for a negative detection.
func NoMatch(reason string) DetectionResult {
	return DetectionResult{Matched: false, Reason: reason}
}

// DownstreamChannel is one downstream DOCSIS channel reading.
type DownstreamChannel struct {
	ChannelID     int     `json:"channel_id"`
	LockStatus    string  `json:"lock_status"`
	Modulation    string  `json:"modulation"`
	FrequencyHz   int64   `json:"frequency"`
	PowerDBmV     float64 `json:"power"`
	SNRdB         float64 `json:"snr"`
	Corrected     int64   `json:"corrected"`
	Uncorrectable int64   `json:"uncorrected"`
}

// UpstreamChannel is one upstream DOCSIS channel reading.
type UpstreamChannel struct {
	ChannelID   int     `json:"channel_id"`
	LockStatus  string  `json:"lock_status"`
	Modulation  string  `json:"modulation"`
	FrequencyHz int64   `json:"frequency"`
	PowerDBmV   float64 `json:"power"`
	SymbolRate  int     `json:"symbol_rate,omitempty"`
}

// ParseResult is the normalized output of a parse. The channel slices are
// always non-nil once a parse succeeds; an absent sequence is a parse
// failure, not an empty reading.
type ParseResult struct {
	// Downstream holds the downstream channel records in device order
	Downstream []DownstreamChannel `json:"downstream"`

	// Upstream holds the upstream channel records in device order
	Upstream []UpstreamChannel `json:"upstream"`

	// System holds manufacturer-specific system fields (firmware version,
	// serial number, uptime, ...). The key set varies per parser but is
	// declared up front in Descriptor.SystemKeys.
	System map[string]string `json:"system_info"`
}

// NewParseResult returns a result with both channel sequences present and
// empty and a ready-to-use system map.
func NewParseResult() *ParseResult {
	return &ParseResult{
		Downstream: []DownstreamChannel{},
		Upstream:   []UpstreamChannel{},
		System:     map[string]string{},
	}
}
