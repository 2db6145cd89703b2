// Package parsers holds the compiled manifest of every modem parser the
// binary ships. Adding support for a new modem means adding its constructor
// here; registration is explicit rather than discovered through import side
// effects, so the full parser set is visible in one place and startup fails
// loudly on a conflicting descriptor.
package parsers

import (
	"github.com/BowlesCR/cable-modem-monitor/internal/parsers/arris"
	"github.com/BowlesCR/cable-modem-monitor/internal/parsers/motorola"
	"github.com/BowlesCR/cable-modem-monitor/internal/parsers/netgear"
	"github.com/BowlesCR/cable-modem-monitor/internal/registry"
)

// Manifest returns the constructors for every supported parser. Order here
// is irrelevant; the registry imposes the detection order.
func Manifest() []registry.Factory {
	return []registry.Factory{
		arris.NewSB6190,
		motorola.NewGeneric,
		motorola.NewMB7621,
		motorola.NewMB8600,
		netgear.NewCM600,
	}
}
