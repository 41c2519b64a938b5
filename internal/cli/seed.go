package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/xplor/crewscore/internal/seeder"
)

// seedRunTimeout bounds a whole seeding run.
const seedRunTimeout = 10 * time.Minute

func newSeedCommand(root *rootOptions) *cobra.Command {
	cfg := seeder.Config{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a running service with random crew and verify the leaderboard",
		Long: `Seed generates random crew profiles, submits them concurrently, waits for
them to be scored, then checks every individual rank against the leaderboard.

Examples:
  crewscore seed
  crewscore seed --url http://localhost:8080 --profiles 5000 --workers 32
  crewscore seed --seed 42 --output subs.json   # reproducible run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), seedRunTimeout)
			defer cancel()

			cfg.Logger = root.log
			report, err := seeder.Run(ctx, cfg)
			if report != nil {
				printReport(cmd.OutOrStdout(), report, err)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", seeder.DefaultBaseURL, "base URL of the service")
	f.StringVar(&cfg.Scheme, "scheme", seeder.DefaultScheme, "scheme to submit under")
	f.IntVar(&cfg.Profiles, "profiles", seeder.DefaultProfiles, "number of crew profiles")
	f.IntVar(&cfg.TopN, "top", seeder.DefaultTopN, "leaderboard entries to fetch and verify")
	f.IntVar(&cfg.Workers, "workers", 0, "concurrent requests (default CPU cores * 2)")
	f.DurationVar(&cfg.Timeout, "timeout", seeder.DefaultTimeout, "per-request timeout")
	f.DurationVar(&cfg.Settle, "settle", seeder.DefaultSettle, "how long to wait for submissions to be scored")
	f.Uint64Var(&cfg.Seed, "seed", 0, "generator seed (default: random)")
	f.StringVar(&cfg.OutputFile, "output", "", "write generated submissions to this JSON file")
	return cmd
}

func printReport(w io.Writer, r *seeder.Report, runErr error) {
	fmt.Fprintln(w, headerStyle.Render("Seeding report"))
	fmt.Fprintln(w, mutedStyle.Render(rule))
	fmt.Fprintln(w, kv("Seed", r.Seed))
	fmt.Fprintln(w, kv("Generated", r.Generated))
	fmt.Fprintln(w, kv("Accepted", r.Accepted))
	fmt.Fprintln(w, kv("Duplicate", r.Duplicate))
	if r.Failed > 0 {
		fmt.Fprintf(w, "  %-12s %s\n", labelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprint(r.Failed)))
	} else {
		fmt.Fprintln(w, kv("Failed", 0))
	}
	fmt.Fprintln(w, kv("Ranked", r.Ranked))
	fmt.Fprintln(w, kv("Duration", r.Duration.Round(time.Millisecond)))
	fmt.Fprintln(w, kv("Rate", fmt.Sprintf("%.0f/s", r.SubmissionsPerSecond())))

	if len(r.Tiers) > 0 {
		fmt.Fprintf(w, "\n%s\n", labelStyle.Render("Tiers"))
		labels := make([]string, 0, len(r.Tiers))
		for l := range r.Tiers {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(w, "  %-16s %s\n", l, valueStyle.Render(fmt.Sprint(r.Tiers[l])))
		}
	}

	if len(r.Leaderboard) > 0 {
		fmt.Fprintf(w, "\n%s\n", labelStyle.Render("Leaderboard"))
		for i, e := range r.Leaderboard {
			if i == 10 {
				fmt.Fprintf(w, "  %s\n", mutedStyle.Render(fmt.Sprintf("… %d more", len(r.Leaderboard)-10)))
				break
			}
			fmt.Fprintf(w, "  %3d. %-36s %3d %s\n", e.Rank, e.CrewID, e.Score, mutedStyle.Render(e.Tier))
		}
	}

	if runErr == nil {
		fmt.Fprintf(w, "\n  %s\n", successStyle.Render("✓ ranks and leaderboard agree"))
	} else {
		fmt.Fprintf(w, "\n  %s\n", errorStyle.Render("✗ run failed"))
	}
}
