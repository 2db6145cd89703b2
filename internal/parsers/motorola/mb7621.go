package motorola

import (
	"strings"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// MB7621Parser handles the Motorola MB7621. The page layout is the standard
// Moto family markup, so parsing is inherited; what the model adds is a
// reliable detection marker on the public software-info page.
type MB7621Parser struct {
	GenericParser
}

// NewMB7621 creates the MB7621 parser.
func NewMB7621() modem.Parser {
	return &MB7621Parser{}
}

// Descriptor implements modem.Parser.
func (*MB7621Parser) Descriptor() modem.Descriptor {
	return modem.Descriptor{
		Name:               "Motorola MB7621",
		Manufacturer:       "Motorola",
		Models:             []string{"MB7621"},
		Priority:           modem.PriorityModel,
		Status:             modem.StatusVerified,
		VerificationSource: "maintainer's personal modem",
		Capabilities: []modem.Capability{
			modem.CapDownstreamChannels,
			modem.CapUpstreamChannels,
			modem.CapSystemUptime,
			modem.CapSoftwareVersion,
			modem.CapRestart,
		},
		SystemKeys: []string{"system_uptime", "software_version", "hardware_version"},
		// The software-info page is reachable without login and carries the
		// model string, so it is probed first.
		Fetches: []modem.FetchSpec{
			{Path: "/MotoSwInfo.asp", Auth: modem.AuthForm},
			{Path: "/MotoConnection.asp", Auth: modem.AuthForm, AuthRequired: true},
			{Path: "/MotoHome.asp", Auth: modem.AuthForm, AuthRequired: true},
		},
	}
}

// Detect implements modem.Parser. The model string shows up in several
// renderings, including the part number used on the software-info page.
func (*MB7621Parser) Detect(content modem.PageContent) modem.DetectionResult {
	body := string(content.Body)
	for _, marker := range []string{"MB7621", "MB 7621", "2480-MB7621"} {
		if strings.Contains(body, marker) {
			return modem.Match("model marker " + marker)
		}
	}
	return modem.NoMatch("no MB7621 model marker")
}

// RequiredFetches implements modem.Parser.
func (p *MB7621Parser) RequiredFetches() []modem.FetchSpec {
	return p.Descriptor().Fetches
}

// Parse implements modem.Parser.
func (p *MB7621Parser) Parse(pages map[string]modem.PageContent) (*modem.ParseResult, error) {
	return parseMotoPages(p.Descriptor().Name, pages)
}
