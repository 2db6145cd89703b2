package modem

import "fmt"

// Shared validation envelope. These are plausibility bounds for healthy
// DOCSIS plants, not protocol limits; parsers for devices that legitimately
// report outside them override via ChannelValidator.
const (
	MinDownstreamPowerDBmV = -20.0
	MaxDownstreamPowerDBmV = 20.0
	MinUpstreamPowerDBmV   = 20.0
	MaxUpstreamPowerDBmV   = 60.0
	MinSNRdB               = 0.0
	MaxSNRdB               = 60.0
)

// ValidateChannels applies the shared envelope: both channel sequences
// present, and every locked channel's power and SNR inside the generic
// bounds. Parsers needing model-specific bounds implement ChannelValidator
// instead; the pipeline prefers the override when present.
func ValidateChannels(parser string, result *ParseResult) error {
	if result == nil {
		return &ValidationError{Parser: parser, Constraint: "nil result"}
	}
	if result.Downstream == nil {
		return &ValidationError{Parser: parser, Constraint: "downstream channel sequence absent"}
	}
	if result.Upstream == nil {
		return &ValidationError{Parser: parser, Constraint: "upstream channel sequence absent"}
	}

	for _, ch := range result.Downstream {
		if ch.PowerDBmV < MinDownstreamPowerDBmV || ch.PowerDBmV > MaxDownstreamPowerDBmV {
			return &ValidationError{
				Parser: parser,
				Constraint: fmt.Sprintf("downstream channel %d power %.1f dBmV outside [%.0f, %.0f]",
					ch.ChannelID, ch.PowerDBmV, MinDownstreamPowerDBmV, MaxDownstreamPowerDBmV),
			}
		}
		if ch.SNRdB < MinSNRdB || ch.SNRdB > MaxSNRdB {
			return &ValidationError{
				Parser: parser,
				Constraint: fmt.Sprintf("downstream channel %d SNR %.1f dB outside [%.0f, %.0f]",
					ch.ChannelID, ch.SNRdB, MinSNRdB, MaxSNRdB),
			}
		}
	}

	for _, ch := range result.Upstream {
		if ch.PowerDBmV < MinUpstreamPowerDBmV || ch.PowerDBmV > MaxUpstreamPowerDBmV {
			return &ValidationError{
				Parser: parser,
				Constraint: fmt.Sprintf("upstream channel %d power %.1f dBmV outside [%.0f, %.0f]",
					ch.ChannelID, ch.PowerDBmV, MinUpstreamPowerDBmV, MaxUpstreamPowerDBmV),
			}
		}
	}

	return nil
}
