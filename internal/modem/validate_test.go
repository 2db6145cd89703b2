package modem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

func goodResult() *modem.ParseResult {
	r := modem.NewParseResult()
	r.Downstream = append(r.Downstream, modem.DownstreamChannel{
		ChannelID: 1, LockStatus: "Locked", Modulation: "QAM256",
		FrequencyHz: 543000000, PowerDBmV: 1.4, SNRdB: 41.2, Corrected: 12,
	})
	r.Upstream = append(r.Upstream, modem.UpstreamChannel{
		ChannelID: 1, LockStatus: "Locked", Modulation: "SC-QAM",
		FrequencyHz: 24000000, PowerDBmV: 44.5, SymbolRate: 5120,
	})
	return r
}

func TestValidateChannels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(*modem.ParseResult)
		wantErr    bool
		constraint string
	}{
		{
			name:   "healthy channels pass",
			mutate: func(*modem.ParseResult) {},
		},
		{
			name: "empty sequences pass",
			mutate: func(r *modem.ParseResult) {
				r.Downstream = []modem.DownstreamChannel{}
				r.Upstream = []modem.UpstreamChannel{}
			},
		},
		{
			name:       "nil downstream sequence fails",
			mutate:     func(r *modem.ParseResult) { r.Downstream = nil },
			wantErr:    true,
			constraint: "downstream channel sequence absent",
		},
		{
			name:       "nil upstream sequence fails",
			mutate:     func(r *modem.ParseResult) { r.Upstream = nil },
			wantErr:    true,
			constraint: "upstream channel sequence absent",
		},
		{
			name:    "downstream power above envelope fails",
			mutate:  func(r *modem.ParseResult) { r.Downstream[0].PowerDBmV = 27.5 },
			wantErr: true,
		},
		{
			name:    "downstream power below envelope fails",
			mutate:  func(r *modem.ParseResult) { r.Downstream[0].PowerDBmV = -33.0 },
			wantErr: true,
		},
		{
			name:    "downstream SNR above envelope fails",
			mutate:  func(r *modem.ParseResult) { r.Downstream[0].SNRdB = 75.0 },
			wantErr: true,
		},
		{
			name:    "upstream power below envelope fails",
			mutate:  func(r *modem.ParseResult) { r.Upstream[0].PowerDBmV = 3.0 },
			wantErr: true,
		},
		{
			name:    "upstream power at boundary passes",
			mutate:  func(r *modem.ParseResult) { r.Upstream[0].PowerDBmV = 60.0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := goodResult()
			tt.mutate(result)

			err := modem.ValidateChannels("test-parser", result)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var verr *modem.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "test-parser", verr.Parser)
			if tt.constraint != "" {
				assert.Equal(t, tt.constraint, verr.Constraint)
			}
		})
	}
}

func TestValidateChannelsNilResult(t *testing.T) {
	t.Parallel()

	err := modem.ValidateChannels("test-parser", nil)
	require.Error(t, err)

	var verr *modem.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nil result", verr.Constraint)
}

func TestDescriptorID(t *testing.T) {
	t.Parallel()

	d := modem.Descriptor{Name: "Motorola MB7621", Manufacturer: "Motorola"}
	assert.Equal(t, "Motorola/Motorola MB7621", d.ID())
}

func TestNewParseResultSequencesPresent(t *testing.T) {
	t.Parallel()

	r := modem.NewParseResult()
	require.NotNil(t, r.Downstream)
	require.NotNil(t, r.Upstream)
	require.NotNil(t, r.System)
	assert.Empty(t, r.Downstream)
	assert.Empty(t, r.Upstream)
}
