// Package arris implements parsers for ARRIS SURFboard cable modems.
package arris

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// SB6190Parser scrapes the ARRIS SB6190 status page. The page is served
// without authentication and lists downstream and upstream bonded channels
// in two captioned tables.
type SB6190Parser struct{}

// NewSB6190 creates the SB6190 parser.
func NewSB6190() modem.Parser {
	return &SB6190Parser{}
}

// Descriptor implements modem.Parser.
func (*SB6190Parser) Descriptor() modem.Descriptor {
	return modem.Descriptor{
		Name:               "ARRIS SB6190",
		Manufacturer:       "ARRIS",
		Models:             []string{"SB6190"},
		Priority:           modem.PriorityModel,
		Status:             modem.StatusVerified,
		VerificationSource: "community-submitted status page captures",
		Capabilities: []modem.Capability{
			modem.CapDownstreamChannels,
			modem.CapUpstreamChannels,
			modem.CapSystemUptime,
		},
		SystemKeys: []string{"system_uptime"},
		Fetches: []modem.FetchSpec{
			{Path: "/cgi-bin/status", Auth: modem.AuthNone},
		},
	}
}

// Detect implements modem.Parser.
func (*SB6190Parser) Detect(content modem.PageContent) modem.DetectionResult {
	body := string(content.Body)
	if strings.Contains(body, "SB6190") {
		return modem.Match("SB6190 model marker")
	}
	return modem.NoMatch("no SB6190 model marker")
}

// RequiredFetches implements modem.Parser.
func (p *SB6190Parser) RequiredFetches() []modem.FetchSpec {
	return p.Descriptor().Fetches
}

// Parse implements modem.Parser. The status page puts values and units in
// the same cell ("879.00 MHz", "-1.20 dBmV"), so every numeric read strips
// the unit.
func (p *SB6190Parser) Parse(pages map[string]modem.PageContent) (*modem.ParseResult, error) {
	name := p.Descriptor().Name

	page, ok := pages["/cgi-bin/status"]
	if !ok {
		return nil, modem.NewParseError(name, "status page missing")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, modem.NewParseError(name, "status page is not parseable HTML")
	}

	result := modem.NewParseResult()

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		caption := strings.TrimSpace(table.Find("th").First().Text())
		switch {
		case strings.Contains(caption, "Downstream Bonded Channels"):
			parseDownstream(table, result)
		case strings.Contains(caption, "Upstream Bonded Channels"):
			parseUpstream(table, result)
		}
	})

	if len(result.Downstream) == 0 && len(result.Upstream) == 0 {
		return nil, modem.NewParseError(name, "no bonded channel tables found")
	}

	if uptime := findUptime(doc); uptime != "" {
		result.System["system_uptime"] = uptime
	}
	return result, nil
}

// Rows: channel, lock status, modulation, channel id, frequency, power,
// SNR, corrected, uncorrectables.
func parseDownstream(table *goquery.Selection, result *modem.ParseResult) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) < 9 || !leadsWithInt(cells[0]) {
			return
		}
		result.Downstream = append(result.Downstream, modem.DownstreamChannel{
			ChannelID:     int(number(cells[3])),
			LockStatus:    cells[1],
			Modulation:    cells[2],
			FrequencyHz:   megahertzToHz(cells[4]),
			PowerDBmV:     number(cells[5]),
			SNRdB:         number(cells[6]),
			Corrected:     int64(number(cells[7])),
			Uncorrectable: int64(number(cells[8])),
		})
	})
}

// Rows: channel, lock status, US channel type, channel id, symbol rate,
// frequency, power.
func parseUpstream(table *goquery.Selection, result *modem.ParseResult) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) < 7 || !leadsWithInt(cells[0]) {
			return
		}
		result.Upstream = append(result.Upstream, modem.UpstreamChannel{
			ChannelID:   int(number(cells[3])),
			LockStatus:  cells[1],
			Modulation:  cells[2],
			SymbolRate:  int(number(cells[4])),
			FrequencyHz: megahertzToHz(cells[5]),
			PowerDBmV:   number(cells[6]),
		})
	})
}

// findUptime reads the "Up Time" row from the status summary table.
func findUptime(doc *goquery.Document) string {
	uptime := ""
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := cellTexts(row)
		if len(cells) >= 2 && strings.Contains(cells[0], "Up Time") {
			uptime = cells[1]
			return false
		}
		return true
	})
	return uptime
}

func cellTexts(row *goquery.Selection) []string {
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

func leadsWithInt(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.Atoi(fields[0])
	return err == nil
}

// number parses the leading numeric token of a cell, ignoring unit text.
func number(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)
	return v
}

func megahertzToHz(s string) int64 {
	v := number(s)
	// Some firmware revisions print Hz instead of MHz; values that large
	// are already in Hz.
	if v > 1_000_000 {
		return int64(math.Round(v))
	}
	return int64(math.Round(v * 1_000_000))
}
