package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
	"github.com/BowlesCR/cable-modem-monitor/internal/telemetry"
)

func sampleResult() *modem.ParseResult {
	r := modem.NewParseResult()
	r.Downstream = append(r.Downstream,
		modem.DownstreamChannel{
			ChannelID: 1, LockStatus: "Locked", Modulation: "QAM256",
			FrequencyHz: 603_000_000, PowerDBmV: 0.9, SNRdB: 38.9,
			Corrected: 406, Uncorrectable: 240,
		},
		modem.DownstreamChannel{
			ChannelID: 2, LockStatus: "Not Locked", Modulation: "QAM256",
			FrequencyHz: 609_000_000,
		},
	)
	r.Upstream = append(r.Upstream, modem.UpstreamChannel{
		ChannelID: 9, LockStatus: "Locked", Modulation: "ATDMA",
		FrequencyHz: 30_600_000, PowerDBmV: 45.8, SymbolRate: 5120,
	})
	return r
}

// gaugeValue reads one labelled series from a gathered family.
func gaugeValue(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric, labels) {
				if metric.GetGauge() != nil {
					return metric.GetGauge().GetValue()
				}
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no series %s%v", name, labels)
	return 0
}

func matchesLabels(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestRecordReadingPublishesChannelGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordReading("living-room", "auto_detect", sampleResult(), 1700000000)

	ch1 := map[string]string{"modem": "living-room", "channel": "1", "modulation": "QAM256"}
	assert.InDelta(t, 0.9, gaugeValue(t, reg, "cmm_downstream_power_dbmv", ch1), 0.001)
	assert.InDelta(t, 38.9, gaugeValue(t, reg, "cmm_downstream_snr_db", ch1), 0.001)
	assert.Equal(t, 603_000_000.0, gaugeValue(t, reg, "cmm_downstream_frequency_hz", ch1))
	assert.Equal(t, 1.0, gaugeValue(t, reg, "cmm_downstream_locked", ch1))

	ch2 := map[string]string{"modem": "living-room", "channel": "2"}
	assert.Equal(t, 0.0, gaugeValue(t, reg, "cmm_downstream_locked", ch2))

	up := map[string]string{"modem": "living-room", "channel": "9", "modulation": "ATDMA"}
	assert.InDelta(t, 45.8, gaugeValue(t, reg, "cmm_upstream_power_dbmv", up), 0.001)
	assert.Equal(t, 5120.0, gaugeValue(t, reg, "cmm_upstream_symbol_rate", up))

	mod := map[string]string{"modem": "living-room"}
	assert.Equal(t, 2.0, gaugeValue(t, reg, "cmm_channel_count",
		map[string]string{"modem": "living-room", "direction": "downstream"}))
	assert.Equal(t, 1.0, gaugeValue(t, reg, "cmm_cycles_total",
		map[string]string{"modem": "living-room", "outcome": "success"}))
	assert.Equal(t, 1.0, gaugeValue(t, reg, "cmm_selection_tier_total",
		map[string]string{"modem": "living-room", "tier": "auto_detect"}))
	assert.Equal(t, 1700000000.0, gaugeValue(t, reg, "cmm_last_success_timestamp_seconds", mod))
}

func TestRecordReadingDropsStaleChannels(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordReading("modem-a", "cached", sampleResult(), 1700000000)

	// Second reading carries fewer channels; the removed channel's series
	// must disappear rather than freeze at its old value.
	shrunk := modem.NewParseResult()
	shrunk.Downstream = append(shrunk.Downstream, modem.DownstreamChannel{
		ChannelID: 1, LockStatus: "Locked", Modulation: "QAM256",
		FrequencyHz: 603_000_000, PowerDBmV: 1.0, SNRdB: 39.0,
	})
	m.RecordReading("modem-a", "cached", shrunk, 1700000060)

	count, err := testutil.GatherAndCount(reg, "cmm_downstream_power_dbmv")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordFailureCountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordFailure("modem-a", "error")
	m.RecordFailure("modem-a", "error")
	m.RecordFailure("modem-a", "abandoned")

	assert.Equal(t, 2.0, gaugeValue(t, reg, "cmm_cycles_total",
		map[string]string{"modem": "modem-a", "outcome": "error"}))
	assert.Equal(t, 1.0, gaugeValue(t, reg, "cmm_cycles_total",
		map[string]string{"modem": "modem-a", "outcome": "abandoned"}))
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)
	m.RecordReading("modem-a", "explicit", sampleResult(), 1700000000)

	srv := httptest.NewServer(telemetry.NewRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cmm_downstream_power_dbmv")
	assert.Contains(t, string(body), `modem="modem-a"`)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	version, err := http.Get(srv.URL + "/version")
	require.NoError(t, err)
	defer version.Body.Close()
	assert.Equal(t, http.StatusOK, version.StatusCode)
	assert.True(t, strings.HasPrefix(version.Header.Get("Content-Type"), "application/json"))
}
