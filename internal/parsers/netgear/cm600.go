// Package netgear implements parsers for NETGEAR cable modems.
package netgear

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// The DOCSIS status page embeds channel data in JavaScript initializer
// functions rather than HTML tables. Each carries a quoted list: the first
// token is the channel count, followed by fixed-width groups of fields.
var (
	dsTagValues = regexp.MustCompile(`InitDsTableTagValue\(\)[^']*'([^']*)'`)
	usTagValues = regexp.MustCompile(`InitUsTableTagValue\(\)[^']*'([^']*)'`)
	uptimeValue = regexp.MustCompile(`InitUpTime\(\)[^']*'([^']*)'`)
)

const (
	dsFieldCount = 9
	usFieldCount = 7
)

// CM600Parser reads the NETGEAR CM600 DocsisStatus page.
type CM600Parser struct{}

// NewCM600 creates the CM600 parser.
func NewCM600() modem.Parser {
	return &CM600Parser{}
}

// Descriptor implements modem.Parser.
func (*CM600Parser) Descriptor() modem.Descriptor {
	return modem.Descriptor{
		Name:               "NETGEAR CM600",
		Manufacturer:       "NETGEAR",
		Models:             []string{"CM600"},
		Priority:           modem.PriorityModel,
		Status:             modem.StatusAwaitingVerification,
		VerificationSource: "firmware page captures, awaiting hardware confirmation",
		Capabilities: []modem.Capability{
			modem.CapDownstreamChannels,
			modem.CapUpstreamChannels,
			modem.CapSystemUptime,
		},
		SystemKeys: []string{"system_uptime"},
		Fetches: []modem.FetchSpec{
			{Path: "/DocsisStatus.asp", Auth: modem.AuthBasic, AuthRequired: true},
			{Path: "/", Auth: modem.AuthNone},
		},
	}
}

// Detect implements modem.Parser. The model string appears in the page
// title and the meta description of both the login and status pages.
func (*CM600Parser) Detect(content modem.PageContent) modem.DetectionResult {
	body := string(content.Body)
	if strings.Contains(body, "CM600") && strings.Contains(body, "NETGEAR") {
		return modem.Match("NETGEAR CM600 model marker")
	}
	return modem.NoMatch("no CM600 model marker")
}

// RequiredFetches implements modem.Parser.
func (p *CM600Parser) RequiredFetches() []modem.FetchSpec {
	return p.Descriptor().Fetches
}

// Parse implements modem.Parser.
func (p *CM600Parser) Parse(pages map[string]modem.PageContent) (*modem.ParseResult, error) {
	name := p.Descriptor().Name

	page, ok := pages["/DocsisStatus.asp"]
	if !ok {
		return nil, modem.NewParseError(name, "DocsisStatus page missing")
	}
	body := string(page.Body)

	result := modem.NewParseResult()

	for _, group := range tagValueGroups(dsTagValues, body, dsFieldCount) {
		result.Downstream = append(result.Downstream, modem.DownstreamChannel{
			ChannelID:     atoi(group[3]),
			LockStatus:    group[1],
			Modulation:    group[2],
			FrequencyHz:   hertz(group[4]),
			PowerDBmV:     atof(group[5]),
			SNRdB:         atof(group[6]),
			Corrected:     int64(atoi(group[7])),
			Uncorrectable: int64(atoi(group[8])),
		})
	}

	for _, group := range tagValueGroups(usTagValues, body, usFieldCount) {
		result.Upstream = append(result.Upstream, modem.UpstreamChannel{
			ChannelID:   atoi(group[3]),
			LockStatus:  group[1],
			Modulation:  group[2],
			SymbolRate:  atoi(group[4]),
			FrequencyHz: hertz(group[5]),
			PowerDBmV:   atof(group[6]),
		})
	}

	if len(result.Downstream) == 0 && len(result.Upstream) == 0 {
		return nil, modem.NewParseError(name, "no channel tag values found")
	}

	if m := uptimeValue.FindStringSubmatch(body); m != nil && strings.TrimSpace(m[1]) != "" {
		result.System["system_uptime"] = strings.TrimSpace(m[1])
	}
	return result, nil
}

// tagValueGroups extracts the quoted list matched by re and slices it into
// fieldCount-wide channel records. The leading token is the declared channel
// count; a short or inconsistent list yields only the complete groups.
func tagValueGroups(re *regexp.Regexp, body string, fieldCount int) [][]string {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	tokens := strings.Split(strings.Trim(m[1], "|"), "|")
	if len(tokens) < 1+fieldCount {
		return nil
	}
	tokens = tokens[1:] // declared count

	var groups [][]string
	for i := 0; i+fieldCount <= len(tokens); i += fieldCount {
		group := tokens[i : i+fieldCount]
		for j := range group {
			group[j] = strings.TrimSpace(group[j])
		}
		groups = append(groups, group)
	}
	return groups
}

func atoi(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.Atoi(fields[0])
	return v
}

func atof(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)
	return v
}

// hertz handles both "603000000 Hz" and bare MHz values.
func hertz(s string) int64 {
	v := atof(s)
	if v > 1_000_000 {
		return int64(math.Round(v))
	}
	return int64(math.Round(v * 1_000_000))
}
