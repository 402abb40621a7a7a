package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/predict"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/Sternrassler/footy-gateway/pkg/warm"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled warm job",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.scheduler()
			if err != nil {
				return err
			}
			if err := sched.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			return a.server().Run(ctx, a.cfg.Addr())
		},
	}
}

func newWarmCommand() *cobra.Command {
	var (
		date      string
		leagueIDs string
		season    int
		standings bool
		teamStats bool
	)

	command := &cobra.Command{
		Use:   "warm",
		Short: "Prefetch a day of fixtures and optional league data into the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := leagues(leagueIDs, a.cfg.Warm.DefaultLeagueIDs)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("standings") {
				standings = a.cfg.Warm.Standings
			}
			if !cmd.Flags().Changed("teamstats") {
				teamStats = a.cfg.Warm.TeamStats
			}

			report, err := a.warmer.Warm(cmd.Context(), warm.Request{
				Date:      dayOrToday(date),
				Season:    season,
				LeagueIDs: ids,
				Standings: standings,
				TeamStats: teamStats,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	command.Flags().StringVar(&date, "date", "", "day to warm as YYYY-MM-DD (default: today in UTC)")
	command.Flags().StringVar(&leagueIDs, "league-ids", "", "comma separated league ids (default: DEFAULT_LEAGUE_IDS)")
	command.Flags().IntVar(&season, "season", 0, "season (default: year of the date)")
	command.Flags().BoolVar(&standings, "standings", false, "also warm league standings")
	command.Flags().BoolVar(&teamStats, "teamstats", false, "also warm team statistics")
	return command
}

type predictOutput struct {
	Rows      []predict.Row `json:"rows"`
	NeedsWarm bool          `json:"needsWarm"`
	Truncated bool          `json:"truncated"`
	Usage     usage.Usage   `json:"usage"`
}

func newPredictCommand() *cobra.Command {
	var (
		date      string
		leagueIDs string
		season    int
		limit     int
		format    string
	)

	command := &cobra.Command{
		Use:   "predict",
		Short: "Predict a day's matches from cached data only",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := leagues(leagueIDs, a.cfg.Warm.DefaultLeagueIDs)
			if err != nil {
				return err
			}

			resp, err := a.predictor.Predict(cmd.Context(), predict.Request{
				Date:      dayOrToday(date),
				Season:    season,
				LeagueIDs: ids,
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			if format == "table" {
				return writeTable(cmd.OutOrStdout(), resp)
			}
			return writeJSON(cmd.OutOrStdout(), predictOutput{
				Rows:      resp.Rows,
				NeedsWarm: resp.NeedsWarm,
				Truncated: resp.Truncated,
				Usage:     resp.Usage,
			})
		},
	}

	command.Flags().StringVar(&date, "date", "", "day to predict as YYYY-MM-DD (default: today in UTC)")
	command.Flags().StringVar(&leagueIDs, "league-ids", "", "comma separated league ids (default: DEFAULT_LEAGUE_IDS)")
	command.Flags().IntVar(&season, "season", 0, "season (default: year of the date)")
	command.Flags().IntVar(&limit, "limit", predict.DefaultLimit, "maximum number of rows")
	command.Flags().StringVar(&format, "format", "json", "output format: json or table")
	return command
}

func newUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's upstream call count and the rate-limit hold",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.gateway.Usage(ctx)
			if err != nil {
				return err
			}
			hold, err := a.holds.GetState(ctx)
			if err != nil {
				return err
			}
			now := a.holds.Now()

			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"usage":       u,
				"remaining":   u.Remaining(),
				"holdActive":  hold.Active(now),
				"secondsLeft": hold.SecondsLeft(now),
			})
		},
	}
}

func newFlushCommand() *cobra.Command {
	var prefix string

	command := &cobra.Command{
		Use:   "flush",
		Short: "Delete cache entries by key prefix, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.gateway.Store().Flush(ctx, prefix)
			if err != nil {
				return err
			}
			flushed := prefix
			if flushed == "" {
				flushed = "ALL"
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"flushed": flushed, "removed": removed})
		},
	}

	command.Flags().StringVar(&prefix, "prefix", "", "key prefix, e.g. \"DERIVED \" (default: everything)")
	return command
}

// leagues parses the flag value, falling back to the configured default list.
func leagues(flag, fallback string) ([]int, error) {
	if flag == "" {
		flag = fallback
	}
	return warm.ParseLeagueIDs(flag)
}

func dayOrToday(date string) string {
	if date == "" {
		return usage.Day(time.Now())
	}
	return date
}

// writeTable prints one line per match. Picks backed by real statistics are
// green, synthetic ones yellow.
func writeTable(w io.Writer, resp *predict.Response) error {
	if len(resp.Rows) == 0 {
		msg := "No predictions."
		if resp.NeedsWarm {
			msg = "No cached fixtures; run `footy-gateway warm` first."
		}
		_, err := fmt.Fprintln(w, msg)
		return err
	}

	authoritative := color.New(color.FgGreen)
	synthetic := color.New(color.FgYellow)
	for _, row := range resp.Rows {
		pick := synthetic
		if row.Authoritative {
			pick = authoritative
		}
		if _, err := fmt.Fprintf(w, "%-24s %-24s %4.2f-%-4.2f ", row.Teams.Home, row.Teams.Away,
			row.Lambdas.Home, row.Lambdas.Away); err != nil {
			return err
		}
		if _, err := pick.Fprintf(w, "%-10s %3d%%", row.Recommended.Pick, row.Recommended.Confidence); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  %s\n", row.Debug.Method); err != nil {
			return err
		}
	}
	if resp.Truncated {
		if _, err := color.New(color.Faint).Fprintln(w, "(truncated)"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "usage %d/%d\n", resp.Usage.Count, resp.Usage.Limit)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
