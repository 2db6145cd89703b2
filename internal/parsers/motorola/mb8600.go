package motorola

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// Channel payloads in HNAP responses are records separated by "|+|", with
// "^"-separated fields inside each record.
const (
	hnapRecordSep = "|+|"
	hnapFieldSep  = "^"
)

// hnapSystemFields maps HNAP response fields to emitted system keys.
var hnapSystemFields = map[string]string{
	"GetMotoStatusConnectionInfoResponse.MotoConnSystemUpTime":      "system_uptime",
	"GetMotoStatusConnectionInfoResponse.MotoConnNetworkAccess":     "network_access",
	"GetMotoStatusStartupSequenceResponse.MotoConnDSFreq":           "downstream_frequency",
	"GetMotoStatusStartupSequenceResponse.MotoConnConnectivityStatus": "connectivity_status",
	"GetMotoStatusStartupSequenceResponse.MotoConnBootStatus":        "boot_status",
	"GetMotoStatusStartupSequenceResponse.MotoConnSecurityStatus":    "security_status",
}

// MB8600Parser reads the Motorola MB8600 over its HNAP JSON API instead of
// scraping HTML. It outranks every HTML parser because the API yields
// complete channel data in one authenticated round trip.
type MB8600Parser struct{}

// NewMB8600 creates the MB8600 HNAP parser.
func NewMB8600() modem.Parser {
	return &MB8600Parser{}
}

// Descriptor implements modem.Parser.
func (*MB8600Parser) Descriptor() modem.Descriptor {
	return modem.Descriptor{
		Name:               "Motorola MB8600 (HNAP)",
		Manufacturer:       "Motorola",
		Models:             []string{"MB8600"},
		Priority:           modem.PriorityAPI,
		Status:             modem.StatusAwaitingVerification,
		VerificationSource: "protocol capture, no maintainer hardware yet",
		Capabilities: []modem.Capability{
			modem.CapDownstreamChannels,
			modem.CapUpstreamChannels,
			modem.CapSystemUptime,
		},
		SystemKeys: []string{
			"system_uptime", "network_access", "downstream_frequency",
			"connectivity_status", "boot_status", "security_status",
		},
		Fetches: []modem.FetchSpec{
			{
				Path:         "/HNAP1/",
				Auth:         modem.AuthHNAP,
				AuthRequired: true,
				HNAPActions: []string{
					"GetMotoStatusStartupSequence",
					"GetMotoStatusConnectionInfo",
					"GetMotoStatusDownstreamChannelInfo",
					"GetMotoStatusUpstreamChannelInfo",
					"GetMotoLagStatus",
				},
			},
		},
	}
}

// Detect implements modem.Parser. The model marker is mandatory: a Motorola
// HNAP endpoint alone could belong to another model (MB8611 and friends),
// and those must not be claimed and mislabeled.
func (*MB8600Parser) Detect(content modem.PageContent) modem.DetectionResult {
	body := string(content.Body)
	if !strings.Contains(body, "MB8600") && !strings.Contains(body, "MB 8600") {
		return modem.NoMatch("no MB8600 model marker")
	}
	if strings.Contains(body, "purenetworks.com/HNAP1") && strings.Contains(body, "Motorola") {
		return modem.Match("MB8600 with HNAP endpoint marker")
	}
	return modem.Match("MB8600 model marker")
}

// RequiredFetches implements modem.Parser.
func (p *MB8600Parser) RequiredFetches() []modem.FetchSpec {
	return p.Descriptor().Fetches
}

// Parse implements modem.Parser. The page body is a GetMultipleHNAPs JSON
// response holding every action result.
func (p *MB8600Parser) Parse(pages map[string]modem.PageContent) (*modem.ParseResult, error) {
	name := p.Descriptor().Name

	page, ok := pages["/HNAP1/"]
	if !ok {
		return nil, modem.NewParseError(name, "no HNAP response page")
	}
	if !gjson.ValidBytes(page.Body) {
		return nil, modem.NewParseError(name, "HNAP response is not valid JSON")
	}

	root := gjson.GetBytes(page.Body, "GetMultipleHNAPsResponse")
	if !root.Exists() {
		return nil, modem.NewParseError(name, "missing GetMultipleHNAPsResponse envelope")
	}

	result := modem.NewParseResult()

	ds := root.Get("GetMotoStatusDownstreamChannelInfoResponse.MotoConnDownstreamChannel").String()
	for _, record := range splitRecords(ds) {
		if ch, ok := parseHNAPDownstream(record); ok {
			result.Downstream = append(result.Downstream, ch)
		}
	}

	us := root.Get("GetMotoStatusUpstreamChannelInfoResponse.MotoConnUpstreamChannel").String()
	for _, record := range splitRecords(us) {
		if ch, ok := parseHNAPUpstream(record); ok {
			result.Upstream = append(result.Upstream, ch)
		}
	}

	if len(result.Downstream) == 0 && len(result.Upstream) == 0 {
		return nil, modem.NewParseError(name, "HNAP response carries no channel data")
	}

	for path, key := range hnapSystemFields {
		if value := root.Get(path).String(); value != "" {
			result.System[key] = value
		}
	}
	return result, nil
}

func splitRecords(payload string) []string {
	var records []string
	for _, record := range strings.Split(payload, hnapRecordSep) {
		if strings.TrimSpace(record) != "" {
			records = append(records, record)
		}
	}
	return records
}

// Downstream record: index^lock^modulation^channel id^freq MHz^power^snr^corrected^uncorrectable
func parseHNAPDownstream(record string) (modem.DownstreamChannel, bool) {
	fields := strings.Split(record, hnapFieldSep)
	if len(fields) < 9 || !isInt(fields[0]) {
		return modem.DownstreamChannel{}, false
	}
	return modem.DownstreamChannel{
		ChannelID:     parseInt(fields[0]),
		LockStatus:    strings.TrimSpace(fields[1]),
		Modulation:    strings.TrimSpace(fields[2]),
		FrequencyHz:   megahertzToHz(fields[4]),
		PowerDBmV:     parseFloat(fields[5]),
		SNRdB:         parseFloat(fields[6]),
		Corrected:     parseInt64(fields[7]),
		Uncorrectable: parseInt64(fields[8]),
	}, true
}

// Upstream record: index^lock^modulation^channel id^symbol rate^freq MHz^power
func parseHNAPUpstream(record string) (modem.UpstreamChannel, bool) {
	fields := strings.Split(record, hnapFieldSep)
	if len(fields) < 7 || !isInt(fields[0]) {
		return modem.UpstreamChannel{}, false
	}
	return modem.UpstreamChannel{
		ChannelID:   parseInt(fields[0]),
		LockStatus:  strings.TrimSpace(fields[1]),
		Modulation:  strings.TrimSpace(fields[2]),
		SymbolRate:  parseInt(fields[4]),
		FrequencyHz: megahertzToHz(fields[5]),
		PowerDBmV:   parseFloat(fields[6]),
	}, true
}
