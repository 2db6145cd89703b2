package arris_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
	"github.com/BowlesCR/cable-modem-monitor/internal/parsers/arris"
)

func loadStatusPage(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "status.html"))
	require.NoError(t, err)
	return data
}

func TestSB6190ParsesStatusPage(t *testing.T) {
	t.Parallel()

	parser := arris.NewSB6190()
	result, err := parser.Parse(map[string]modem.PageContent{
		"/cgi-bin/status": {Path: "/cgi-bin/status", Body: loadStatusPage(t)},
	})
	require.NoError(t, err)

	require.Len(t, result.Downstream, 2)
	first := result.Downstream[0]
	assert.Equal(t, 17, first.ChannelID)
	assert.Equal(t, "Locked", first.LockStatus)
	assert.Equal(t, "QAM256", first.Modulation)
	assert.Equal(t, int64(879_000_000), first.FrequencyHz)
	assert.InDelta(t, -1.2, first.PowerDBmV, 0.001)
	assert.InDelta(t, 38.8, first.SNRdB, 0.001)
	assert.Equal(t, int64(73), first.Corrected)

	require.Len(t, result.Upstream, 2)
	up := result.Upstream[0]
	assert.Equal(t, 2, up.ChannelID)
	assert.Equal(t, "ATDMA", up.Modulation)
	assert.Equal(t, 5120, up.SymbolRate)
	assert.Equal(t, int64(17_300_000), up.FrequencyHz)
	assert.InDelta(t, 40.0, up.PowerDBmV, 0.001)

	assert.Equal(t, "14 days 02h:33m:09s", result.System["system_uptime"])
}

func TestSB6190ParseFailsWithoutChannelTables(t *testing.T) {
	t.Parallel()

	parser := arris.NewSB6190()
	_, err := parser.Parse(map[string]modem.PageContent{
		"/cgi-bin/status": {Path: "/cgi-bin/status", Body: []byte("<html><body>Login required</body></html>")},
	})

	var parseErr *modem.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestSB6190Detection(t *testing.T) {
	t.Parallel()

	parser := arris.NewSB6190()
	assert.True(t, parser.Detect(modem.PageContent{Body: loadStatusPage(t)}).Matched)
	assert.False(t, parser.Detect(modem.PageContent{Body: []byte("<title>SURFboard SB8200</title>")}).Matched)
}
