package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// Metrics exposes per-channel signal readings and cycle outcomes for
// Prometheus scraping. One instance covers every configured modem; the
// modem connection name is a label.
type Metrics struct {
	downPower         *prometheus.GaugeVec
	downSNR           *prometheus.GaugeVec
	downFrequency     *prometheus.GaugeVec
	downCorrected     *prometheus.GaugeVec
	downUncorrectable *prometheus.GaugeVec
	downLocked        *prometheus.GaugeVec

	upPower      *prometheus.GaugeVec
	upFrequency  *prometheus.GaugeVec
	upSymbolRate *prometheus.GaugeVec
	upLocked     *prometheus.GaugeVec

	channelCount *prometheus.GaugeVec

	cycles        *prometheus.CounterVec
	selectionTier *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	channelLabels := []string{"modem", "channel", "modulation"}

	m := &Metrics{
		downPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_downstream_power_dbmv",
			Help: "Downstream channel power in dBmV.",
		}, channelLabels),
		downSNR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_downstream_snr_db",
			Help: "Downstream channel signal-to-noise ratio in dB.",
		}, channelLabels),
		downFrequency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_downstream_frequency_hz",
			Help: "Downstream channel frequency in Hz.",
		}, channelLabels),
		downCorrected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_downstream_corrected_total",
			Help: "Corrected codewords as reported by the modem.",
		}, channelLabels),
		downUncorrectable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_downstream_uncorrectable_total",
			Help: "Uncorrectable codewords as reported by the modem.",
		}, channelLabels),
		downLocked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_downstream_locked",
			Help: "Whether the downstream channel is locked (1) or not (0).",
		}, channelLabels),
		upPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_upstream_power_dbmv",
			Help: "Upstream channel transmit power in dBmV.",
		}, channelLabels),
		upFrequency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_upstream_frequency_hz",
			Help: "Upstream channel frequency in Hz.",
		}, channelLabels),
		upSymbolRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_upstream_symbol_rate",
			Help: "Upstream channel symbol rate in Ksym/sec.",
		}, channelLabels),
		upLocked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_upstream_locked",
			Help: "Whether the upstream channel is locked (1) or not (0).",
		}, channelLabels),
		channelCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_channel_count",
			Help: "Number of channels in the last reading.",
		}, []string{"modem", "direction"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmm_cycles_total",
			Help: "Polling cycles by outcome.",
		}, []string{"modem", "outcome"}),
		selectionTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmm_selection_tier_total",
			Help: "How the parser was chosen for successful cycles.",
		}, []string{"modem", "tier"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmm_last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle.",
		}, []string{"modem"}),
	}

	reg.MustRegister(
		m.downPower, m.downSNR, m.downFrequency, m.downCorrected,
		m.downUncorrectable, m.downLocked,
		m.upPower, m.upFrequency, m.upSymbolRate, m.upLocked,
		m.channelCount, m.cycles, m.selectionTier, m.lastSuccess,
	)
	return m
}

// RecordReading publishes one successful cycle. Channel labels change when
// the modem relocks, so stale series for this modem are reset first.
func (m *Metrics) RecordReading(connection, tier string, result *modem.ParseResult, collectedAt float64) {
	m.resetChannelSeries(connection)

	for _, ch := range result.Downstream {
		labels := prometheus.Labels{
			"modem":      connection,
			"channel":    strconv.Itoa(ch.ChannelID),
			"modulation": ch.Modulation,
		}
		m.downPower.With(labels).Set(ch.PowerDBmV)
		m.downSNR.With(labels).Set(ch.SNRdB)
		m.downFrequency.With(labels).Set(float64(ch.FrequencyHz))
		m.downCorrected.With(labels).Set(float64(ch.Corrected))
		m.downUncorrectable.With(labels).Set(float64(ch.Uncorrectable))
		m.downLocked.With(labels).Set(lockedValue(ch.LockStatus))
	}

	for _, ch := range result.Upstream {
		labels := prometheus.Labels{
			"modem":      connection,
			"channel":    strconv.Itoa(ch.ChannelID),
			"modulation": ch.Modulation,
		}
		m.upPower.With(labels).Set(ch.PowerDBmV)
		m.upFrequency.With(labels).Set(float64(ch.FrequencyHz))
		m.upSymbolRate.With(labels).Set(float64(ch.SymbolRate))
		m.upLocked.With(labels).Set(lockedValue(ch.LockStatus))
	}

	m.channelCount.WithLabelValues(connection, "downstream").Set(float64(len(result.Downstream)))
	m.channelCount.WithLabelValues(connection, "upstream").Set(float64(len(result.Upstream)))

	m.cycles.WithLabelValues(connection, "success").Inc()
	m.selectionTier.WithLabelValues(connection, tier).Inc()
	m.lastSuccess.WithLabelValues(connection).Set(collectedAt)
}

// RecordFailure counts a failed or abandoned cycle.
func (m *Metrics) RecordFailure(connection, outcome string) {
	m.cycles.WithLabelValues(connection, outcome).Inc()
}

func (m *Metrics) resetChannelSeries(connection string) {
	selector := prometheus.Labels{"modem": connection}
	for _, vec := range []*prometheus.GaugeVec{
		m.downPower, m.downSNR, m.downFrequency, m.downCorrected,
		m.downUncorrectable, m.downLocked,
		m.upPower, m.upFrequency, m.upSymbolRate, m.upLocked,
	} {
		vec.DeletePartialMatch(selector)
	}
}

func lockedValue(status string) float64 {
	if status == "Locked" {
		return 1.0
	}
	return 0.0
}
