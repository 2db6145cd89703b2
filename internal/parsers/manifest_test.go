package parsers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BowlesCR/cable-modem-monitor/internal/parsers"
	"github.com/BowlesCR/cable-modem-monitor/internal/registry"
)

func TestManifestRegistersCleanly(t *testing.T) {
	t.Parallel()

	reg, err := registry.New(parsers.Manifest())
	require.NoError(t, err)

	// Manufacturers alphabetical, then priority descending: the MB8600 API
	// parser outranks the MB7621 model parser, which outranks the family
	// generic.
	want := []string{
		"ARRIS SB6190",
		"Motorola MB8600 (HNAP)",
		"Motorola MB7621",
		"Motorola MB Series (Generic)",
		"NETGEAR CM600",
	}
	assert.Equal(t, want, reg.Names())
}

func TestManifestDescriptorsDeclareFetches(t *testing.T) {
	t.Parallel()

	for _, factory := range parsers.Manifest() {
		parser := factory()
		desc := parser.Descriptor()
		assert.NotEmpty(t, desc.Fetches, "parser %s declares no fetch specs", desc.ID())
		assert.NotEmpty(t, desc.Capabilities, "parser %s declares no capabilities", desc.ID())
		assert.Equal(t, desc.Fetches, parser.RequiredFetches())
	}
}
