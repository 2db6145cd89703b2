// Package motorola implements parsers for Motorola MB-series cable modems:
// a generic HTML scraper that covers the whole family, a model-specific
// MB7621 variant, and an HNAP/JSON parser for the MB8600.
package motorola

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// Moto status pages render channel data in tables with this class; the
// surrounding markup varies between firmware releases but the class does not.
const motoTableClass = "table.moto-table-content"

// System-info labels as they appear in the first cell of moto-table-content
// rows, mapped to the keys this family emits.
var motoSystemLabels = map[string]string{
	"System Up Time":   "system_uptime",
	"Software Version": "software_version",
	"Hardware Version": "hardware_version",
}

// GenericParser scrapes any Motorola MB-series modem that serves the
// standard Moto status pages. Model-specific parsers embed it and override
// the descriptor and detection.
type GenericParser struct{}

// NewGeneric creates the family-wide fallback parser.
func NewGeneric() modem.Parser {
	return &GenericParser{}
}

// Descriptor implements modem.Parser.
func (*GenericParser) Descriptor() modem.Descriptor {
	return modem.Descriptor{
		Name:               "Motorola MB Series (Generic)",
		Manufacturer:       "Motorola",
		Models:             []string{"MB series"},
		Priority:           modem.PriorityGeneric,
		Status:             modem.StatusVerified,
		VerificationSource: "MB7621 field captures",
		Capabilities: []modem.Capability{
			modem.CapDownstreamChannels,
			modem.CapUpstreamChannels,
			modem.CapSystemUptime,
			modem.CapSoftwareVersion,
		},
		SystemKeys: []string{"system_uptime", "software_version", "hardware_version"},
		Fetches: []modem.FetchSpec{
			{Path: "/MotoConnection.asp", Auth: modem.AuthForm, AuthRequired: true},
			{Path: "/MotoHome.asp", Auth: modem.AuthForm, AuthRequired: true},
		},
	}
}

// Detect implements modem.Parser. The generic parser claims anything that
// looks like a Moto status page, so it must sit at family priority and let
// model-specific parsers match first.
func (*GenericParser) Detect(content modem.PageContent) modem.DetectionResult {
	body := string(content.Body)
	if !strings.Contains(body, "Motorola") {
		return modem.NoMatch("no Motorola marker")
	}
	if strings.Contains(body, "moto-table-content") || strings.Contains(body, "MotoConnection") {
		return modem.Match("Motorola Moto status page markup")
	}
	return modem.NoMatch("Motorola marker without Moto page markup")
}

// RequiredFetches implements modem.Parser.
func (p *GenericParser) RequiredFetches() []modem.FetchSpec {
	return p.Descriptor().Fetches
}

// Parse implements modem.Parser. The connection page carries the channel
// tables; the home page only adds system info, so its absence is tolerated.
func (p *GenericParser) Parse(pages map[string]modem.PageContent) (*modem.ParseResult, error) {
	return parseMotoPages(p.Descriptor().Name, pages)
}

func parseMotoPages(parser string, pages map[string]modem.PageContent) (*modem.ParseResult, error) {
	result := modem.NewParseResult()

	parsedAny := false
	for _, page := range pages {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			continue
		}
		parseMotoDocument(doc, result)
		parsedAny = true
	}
	if !parsedAny {
		return nil, modem.NewParseError(parser, "no parseable pages")
	}
	if len(result.Downstream) == 0 && len(result.Upstream) == 0 {
		return nil, modem.NewParseError(parser, "no channel tables found")
	}
	return result, nil
}

// parseMotoDocument walks every Moto table in one page, classifying each by
// its header row. A page may carry channel tables, system-info rows, or both.
func parseMotoDocument(doc *goquery.Document, result *modem.ParseResult) {
	doc.Find(motoTableClass).Each(func(_ int, table *goquery.Selection) {
		headers := tableHeaders(table)
		switch {
		case containsHeader(headers, "SNR (dB)"):
			parseDownstreamTable(table, result)
		case containsHeader(headers, "Symb. Rate (Ksym/sec)"), containsHeader(headers, "US Channel Type"):
			parseUpstreamTable(table, result)
		default:
			parseSystemRows(table, result)
		}
	})
}

func tableHeaders(table *goquery.Selection) []string {
	var headers []string
	table.Find("td.moto-param-header-s").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, cleanCell(cell.Text()))
	})
	return headers
}

func containsHeader(headers []string, want string) bool {
	for _, h := range headers {
		if h == want {
			return true
		}
	}
	return false
}

// Downstream rows: channel, lock status, modulation, DCID, frequency (MHz),
// power (dBmV), SNR (dB), corrected, uncorrected.
func parseDownstreamTable(table *goquery.Selection, result *modem.ParseResult) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) < 9 || !isInt(cells[0]) {
			return
		}
		result.Downstream = append(result.Downstream, modem.DownstreamChannel{
			ChannelID:     parseInt(cells[0]),
			LockStatus:    cells[1],
			Modulation:    cells[2],
			FrequencyHz:   megahertzToHz(cells[4]),
			PowerDBmV:     parseFloat(cells[5]),
			SNRdB:         parseFloat(cells[6]),
			Corrected:     parseInt64(cells[7]),
			Uncorrectable: parseInt64(cells[8]),
		})
	})
}

// Upstream rows: channel, lock status, channel type, UCID, symbol rate
// (Ksym/sec), frequency (MHz), power (dBmV).
func parseUpstreamTable(table *goquery.Selection, result *modem.ParseResult) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) < 7 || !isInt(cells[0]) {
			return
		}
		result.Upstream = append(result.Upstream, modem.UpstreamChannel{
			ChannelID:   parseInt(cells[0]),
			LockStatus:  cells[1],
			Modulation:  cells[2],
			SymbolRate:  parseInt(cells[4]),
			FrequencyHz: megahertzToHz(cells[5]),
			PowerDBmV:   parseFloat(cells[6]),
		})
	})
}

// parseSystemRows picks up label/value rows like "System Up Time".
func parseSystemRows(table *goquery.Selection, result *modem.ParseResult) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) < 2 {
			return
		}
		if key, ok := motoSystemLabels[cells[0]]; ok && cells[1] != "" {
			result.System[key] = cells[1]
		}
	})
}

func rowCells(row *goquery.Selection) []string {
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, cleanCell(cell.Text()))
	})
	return cells
}

// cleanCell strips the non-breaking-space padding the Moto pages wrap
// labels in.
func cleanCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, " ", " "))
}
