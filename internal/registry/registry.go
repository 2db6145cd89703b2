// Package registry indexes every available modem parser and exposes them in
// a single deterministic order.
//
// Registration is an explicit, inspectable step: the caller assembles a
// manifest of parser factory functions (see internal/parsers) and hands it
// to New. There is no import-time side effect and no global mutable state;
// building the registry twice from the same manifest yields the same order.
package registry

import (
	"fmt"
	"sort"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

// ManufacturerUnknown sorts after every real manufacturer so catch-all
// parsers are always the last resort during detection.
const ManufacturerUnknown = "Unknown"

// Factory constructs one parser instance. Factories must be pure; the
// registry calls each exactly once.
type Factory func() modem.Parser

// Registry holds the ordered parser list. Read-only after New returns, so
// concurrent polling cycles can share one instance without locking.
type Registry struct {
	ordered []modem.Parser
	byID    map[string]modem.Parser
	byName  map[string]modem.Parser
}

// New builds a registry from the manifest. Two parsers sharing
// (manufacturer, name), two parsers sharing a bare name across
// manufacturers, or a parser whose declared system keys collide with the
// reserved channel keys are configuration errors surfaced here, at startup.
// Rejecting bare-name duplicates keeps Lookup by bare name unambiguous.
func New(manifest []Factory) (*Registry, error) {
	r := &Registry{
		ordered: make([]modem.Parser, 0, len(manifest)),
		byID:    make(map[string]modem.Parser, len(manifest)),
		byName:  make(map[string]modem.Parser, len(manifest)),
	}

	for _, factory := range manifest {
		p := factory()
		desc := p.Descriptor()

		if desc.Name == "" || desc.Manufacturer == "" {
			return nil, fmt.Errorf("parser descriptor must declare name and manufacturer, got %+v", desc)
		}

		id := desc.ID()
		if _, exists := r.byID[id]; exists {
			return nil, fmt.Errorf("duplicate parser registration: %s", id)
		}
		if prior, exists := r.byName[desc.Name]; exists {
			return nil, fmt.Errorf("parser name %q registered by both %s and %s",
				desc.Name, prior.Descriptor().ID(), id)
		}

		if err := checkSystemKeys(desc); err != nil {
			return nil, err
		}

		r.byID[id] = p
		r.byName[desc.Name] = p
		r.ordered = append(r.ordered, p)
	}

	sortParsers(r.ordered)
	return r, nil
}

// checkSystemKeys rejects declared system fields that would collide with the
// reserved channel-sequence keys in the merged result.
func checkSystemKeys(desc modem.Descriptor) error {
	for _, key := range desc.SystemKeys {
		if key == modem.KeyDownstream || key == modem.KeyUpstream {
			return fmt.Errorf("parser %s declares system key %q which collides with a reserved channel key",
				desc.ID(), key)
		}
	}
	return nil
}

// sortParsers applies the total order: manufacturer ascending with Unknown
// last, then priority descending, then name ascending. Name is the
// deterministic tie-break for equal priorities.
func sortParsers(parsers []modem.Parser) {
	sort.SliceStable(parsers, func(i, j int) bool {
		a, b := parsers[i].Descriptor(), parsers[j].Descriptor()

		if a.Manufacturer != b.Manufacturer {
			if a.Manufacturer == ManufacturerUnknown {
				return false
			}
			if b.Manufacturer == ManufacturerUnknown {
				return true
			}
			return a.Manufacturer < b.Manufacturer
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Name < b.Name
	})
}

// Parsers returns the parsers in registry order. Callers must not mutate the
// returned slice.
func (r *Registry) Parsers() []modem.Parser {
	return r.ordered
}

// Len returns the number of registered parsers.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Lookup resolves a parser by its full id (manufacturer/name) or bare name.
// Returns nil if no such parser is registered.
func (r *Registry) Lookup(id string) modem.Parser {
	if p, ok := r.byID[id]; ok {
		return p
	}
	return r.byName[id]
}

// Names returns the parser names in registry order, for CLI listings and
// configuration validation messages.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, p := range r.ordered {
		names = append(names, p.Descriptor().Name)
	}
	return names
}
