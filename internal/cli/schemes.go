package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

func newSchemesCommand(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schemes",
		Short: "List the scoring schemes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := root.registry()
			if err != nil {
				return err
			}
			schemes := reg.List()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), schemes)
			}
			printSchemes(cmd.OutOrStdout(), schemes)
			return nil
		},
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show the weights and tiers of one scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := root.registry()
			if err != nil {
				return err
			}
			s, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			printScheme(cmd.OutOrStdout(), s)
			return nil
		},
	})
	return cmd
}

func printSchemes(w io.Writer, schemes []scoring.Scheme) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Scoring schemes (%d):", len(schemes))))
	fmt.Fprintln(w, mutedStyle.Render(rule))
	for _, s := range schemes {
		fmt.Fprintf(w, "\n%s %s\n", labelStyle.Render(s.Name), mutedStyle.Render(s.Label+" v"+s.Version))
		fmt.Fprintln(w, kv("Max total", s.MaxTotal()))
		fmt.Fprintln(w, kv("Categories", len(s.Categories)))
		badges := make([]string, 0, len(s.Tiers.Bands))
		for _, t := range s.Tiers.Bands {
			badges = append(badges, tierBadge(t))
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(badges, " "))
	}
	fmt.Fprintf(w, "\n%s\n", mutedStyle.Render("For details: crewscore schemes show <name>"))
}

func printScheme(w io.Writer, s scoring.Scheme) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%s) v%s", s.Label, s.Name, s.Version)))
	if s.Description != "" {
		fmt.Fprintln(w, mutedStyle.Render(s.Description))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))

	for _, c := range s.Categories {
		maxLabel := fmt.Sprintf("max %d", c.Max)
		if c.Uncapped {
			maxLabel = "uncapped bonus"
		}
		fmt.Fprintf(w, "\n%s %s\n", labelStyle.Render(c.Label), mutedStyle.Render(maxLabel))
		if c.Placeholder() {
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render("no inputs yet; always 0"))
			continue
		}
		for _, t := range c.Terms {
			fmt.Fprintf(w, "  %s %s\n", valueStyle.Render(t.Name), mutedStyle.Render(describeTerm(t)))
		}
	}

	fmt.Fprintf(w, "\n%s\n", labelStyle.Render("Tiers"))
	for _, t := range s.Tiers.Bands {
		fmt.Fprintf(w, "  %3d-%-3d %s\n", t.Min, t.Max, tierBadge(t))
	}
	if s.Tiers.Overflow != "" {
		fmt.Fprintf(w, "  %s\n", mutedStyle.Render("overflow: "+string(s.Tiers.Overflow)))
	}
}

func describeTerm(t scoring.Term) string {
	inputs := strings.Join(t.Fields, "+")
	if t.Source != "" {
		inputs = t.Source
	}
	parts := []string{string(t.Rule), inputs}
	switch {
	case t.PerUnit != 0:
		parts = append(parts, fmt.Sprintf("%g/unit", t.PerUnit))
	case len(t.Breakpoints) > 0:
		parts = append(parts, fmt.Sprintf("%d breakpoints", len(t.Breakpoints)))
	case len(t.Points) > 0:
		parts = append(parts, fmt.Sprintf("%d choices", len(t.Points)))
	case len(t.Table) > 0:
		rows := make([]string, 0, len(t.Table))
		for k := range t.Table {
			rows = append(rows, k)
		}
		sort.Strings(rows)
		parts = append(parts, "rows "+strings.Join(rows, ", "))
	}
	if t.Cap != nil {
		parts = append(parts, fmt.Sprintf("cap %g", *t.Cap))
	}
	return strings.Join(parts, " · ")
}
