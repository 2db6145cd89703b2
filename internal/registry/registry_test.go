package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
	"github.com/BowlesCR/cable-modem-monitor/internal/modem/modemtest"
	"github.com/BowlesCR/cable-modem-monitor/internal/registry"
)

func factoryFor(manufacturer, name string, priority int) registry.Factory {
	return func() modem.Parser {
		return modemtest.NewFakeParser(manufacturer, name, priority)
	}
}

func TestNewOrdersParsersDeterministically(t *testing.T) {
	t.Parallel()

	// Deliberately shuffled manifest.
	manifest := []registry.Factory{
		factoryFor("Netgear", "Netgear CM600", modem.PriorityModel),
		factoryFor("Motorola", "Motorola MB Series (Generic)", modem.PriorityGeneric),
		factoryFor(registry.ManufacturerUnknown, "Generic DOCSIS", modem.PriorityGeneric),
		factoryFor("Motorola", "Motorola MB8600 (HNAP)", modem.PriorityAPI),
		factoryFor("ARRIS", "ARRIS SB6190", modem.PriorityModel),
		factoryFor("Motorola", "Motorola MB7621", modem.PriorityModel),
	}

	reg, err := registry.New(manifest)
	require.NoError(t, err)

	want := []string{
		"ARRIS SB6190",
		"Motorola MB8600 (HNAP)",
		"Motorola MB7621",
		"Motorola MB Series (Generic)",
		"Netgear CM600",
		"Generic DOCSIS",
	}
	assert.Equal(t, want, reg.Names())

	// Re-running discovery from the same manifest yields identical order.
	reg2, err := registry.New(manifest)
	require.NoError(t, err)
	assert.Equal(t, reg.Names(), reg2.Names())
}

func TestNewBreaksPriorityTiesByName(t *testing.T) {
	t.Parallel()

	manifest := []registry.Factory{
		factoryFor("Motorola", "Motorola MB8611 (Static)", modem.PriorityModel),
		factoryFor("Motorola", "Motorola MB7621", modem.PriorityModel),
	}

	reg, err := registry.New(manifest)
	require.NoError(t, err)
	assert.Equal(t, []string{"Motorola MB7621", "Motorola MB8611 (Static)"}, reg.Names())
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	manifest := []registry.Factory{
		factoryFor("Motorola", "Motorola MB7621", modem.PriorityModel),
		factoryFor("Motorola", "Motorola MB7621", modem.PriorityGeneric),
	}

	_, err := registry.New(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate parser registration")
}

func TestNewRejectsBareNameCollisionAcrossManufacturers(t *testing.T) {
	t.Parallel()

	// A shared bare name would make Lookup by name last-write-win.
	manifest := []registry.Factory{
		factoryFor("ARRIS", "Surfboard", modem.PriorityModel),
		factoryFor("Motorola", "Surfboard", modem.PriorityModel),
	}

	_, err := registry.New(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parser name "Surfboard" registered by both`)
}

func TestNewRejectsReservedSystemKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
	}{
		{name: "downstream collision", key: "downstream"},
		{name: "upstream collision", key: "upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manifest := []registry.Factory{
				func() modem.Parser {
					p := modemtest.NewFakeParser("ARRIS", "ARRIS SB6190", modem.PriorityModel)
					p.Desc.SystemKeys = []string{"software_version", tt.key}
					return p
				},
			}

			_, err := registry.New(manifest)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "reserved channel key")
		})
	}
}

func TestNewRejectsAnonymousParser(t *testing.T) {
	t.Parallel()

	manifest := []registry.Factory{factoryFor("", "", modem.PriorityGeneric)}

	_, err := registry.New(manifest)
	require.Error(t, err)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	reg, err := registry.New([]registry.Factory{
		factoryFor("Motorola", "Motorola MB7621", modem.PriorityModel),
	})
	require.NoError(t, err)

	assert.NotNil(t, reg.Lookup("Motorola MB7621"), "bare name lookup")
	assert.NotNil(t, reg.Lookup("Motorola/Motorola MB7621"), "full id lookup")
	assert.Nil(t, reg.Lookup("Invalid Parser Name"))
}
