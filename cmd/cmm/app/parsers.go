package app

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BowlesCR/cable-modem-monitor/internal/parsers"
	"github.com/BowlesCR/cable-modem-monitor/internal/registry"
)

var parsersCmd = &cobra.Command{
	Use:   "parsers",
	Short: "List the registered modem parsers",
	Long: `List every registered parser in detection order. The order shown here is
the order the auto-detection sweep tries candidates in; the first match wins.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		reg, err := registry.New(parsers.Manifest())
		if err != nil {
			return fmt.Errorf("failed to build parser registry: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODELS\tPRIORITY\tSTATUS")
		for _, p := range reg.Parsers() {
			desc := p.Descriptor()
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				desc.ID(), strings.Join(desc.Models, ", "), desc.Priority, desc.Status)
		}
		return w.Flush()
	},
}
