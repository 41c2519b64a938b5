package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

type scoreOptions struct {
	scheme string
	file   string
	crewID string
	asJSON bool
}

func newScoreCommand(root *rootOptions) *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one profile or an array of profiles",
		Long: `Score reads a JSON crew profile (or an array of profiles) and prints the
category breakdown, total and tier.

Examples:
  crewscore score --file profile.json
  cat crew.json | crewscore score --scheme yci --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := root.registry()
			if err != nil {
				return err
			}
			profiles, err := readProfiles(cmd.InOrStdin(), opts.file)
			if err != nil {
				return err
			}
			return runScore(cmd.Context(), cmd.OutOrStdout(), reg, opts, profiles)
		},
	}
	cmd.Flags().StringVar(&opts.scheme, "scheme", scoring.DefaultScheme, "scheme to score under")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "profile JSON file, - for stdin")
	cmd.Flags().StringVar(&opts.crewID, "crew", "", "crew id echoed in the result")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	return cmd
}

func runScore(ctx context.Context, w io.Writer, reg *scoring.Registry, opts *scoreOptions, profiles []scoring.Profile) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scorer := scoring.NewTableScorer(reg)
	scheme, err := reg.Get(opts.scheme)
	if err != nil {
		return err
	}

	results := make([]scoring.Result, 0, len(profiles))
	for _, p := range profiles {
		res, err := scorer.Score(ctx, scoring.Input{CrewID: opts.crewID, Scheme: scheme.Name, Profile: p})
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	if opts.asJSON {
		if len(results) == 1 {
			return writeJSON(w, results[0])
		}
		return writeJSON(w, results)
	}
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printResult(w, scheme, res)
	}
	return nil
}

func printResult(w io.Writer, scheme scoring.Scheme, res scoring.Result) {
	title := scheme.Label
	if res.CrewID != "" {
		title += " · " + res.CrewID
	}
	fmt.Fprintln(w, headerStyle.Render(title))
	fmt.Fprintln(w, mutedStyle.Render(rule))
	for _, c := range res.Breakdown {
		maxLabel := fmt.Sprintf("/%d", c.Max)
		if c.Uncapped {
			maxLabel = " bonus"
		}
		fmt.Fprintf(w, "  %-24s %s %3d%s\n", labelStyle.Render(c.Label), bar(c.Score, c.Max), c.Score, mutedStyle.Render(maxLabel))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))
	fmt.Fprintf(w, "  %-24s %s %s\n", labelStyle.Render("Total"), valueStyle.Render(fmt.Sprintf("%d/%d", res.Total, scheme.MaxTotal())), tierBadge(res.Tier))
	if !res.TierMatched {
		fmt.Fprintln(w, mutedStyle.Render("  total outside every tier band; fallback tier applied"))
	}
}

// readProfiles decodes a single profile object or an array of them.
func readProfiles(stdin io.Reader, file string) ([]scoring.Profile, error) {
	var r io.Reader = stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open profile: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("read profile: empty input")
	}

	if data[0] == '[' {
		var ps []scoring.Profile
		if err := json.Unmarshal(data, &ps); err != nil {
			return nil, fmt.Errorf("decode profiles: %w", err)
		}
		return ps, nil
	}
	var p scoring.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return []scoring.Profile{p}, nil
}
