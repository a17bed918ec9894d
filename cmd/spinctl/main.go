package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spinrank/internal/bots"
	cl "spinrank/internal/cli"
	"spinrank/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "spinctl",
		Short:        "Spinrank operator console",
		SilenceUsage: true,
	}

	root.AddCommand(
		newConnectCmd(&apiBase),
		newDisconnectCmd(),
		newGenerateCmd(),
		newRetireCmd(),
		newPurgeCmd(),
		newBotsCmd(),
		newRunCmd(),
		newOverrideCmd(),
		newPoolCmd(),
		newAnalyticsCmd(),
		newWinnerCmd(),
		newTicketCmd(),
	)

	if err := root.Execute(); err != nil {
		danger.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newSessionClient() (*cl.Client, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("connect required: %w", err)
	}
	return cl.NewClient(sess.BaseURL, sess.AdminToken), nil
}

func newConnectCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Save admin endpoint and token for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := promptOptional(fmt.Sprintf("API base URL [%s]", *apiBase))
			if err != nil {
				return err
			}
			if base == "" {
				base = *apiBase
			}
			token, err := promptRequired("Admin token")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := cl.NewClient(base, token)
			if _, err := client.Pool(ctx); err != nil {
				return fmt.Errorf("endpoint check failed: %w", err)
			}
			if err := cl.SaveSession(cl.Session{
				BaseURL:    strings.TrimRight(strings.TrimSpace(base), "/"),
				AdminToken: token,
			}); err != nil {
				return err
			}
			printSuccess("Connected. Session saved.")
			return nil
		},
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Clear the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Session cleared.")
			return nil
		},
	}
}

func weekFromArgs(args []string) (string, error) {
	if len(args) == 0 {
		return bots.CurrentWeekKey(time.Now().UTC()), nil
	}
	week := strings.TrimSpace(args[0])
	if err := bots.ValidateWeekKey(week); err != nil {
		return "", err
	}
	return week, nil
}

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [week]",
		Short: "Generate or refresh the bot roster for a week",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := weekFromArgs(args)
			if err != nil {
				return err
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Generate(ctx, week)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Roster ready for %s (%d bots).", out.WeekKey, len(out.Bots)))
			return renderRoster(out)
		},
	}
}

func newRetireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retire [week]",
		Short: "Retire the week's bots and drop their ranking entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := weekFromArgs(args)
			if err != nil {
				return err
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Retire(ctx, week)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Retired %d bots for %s.", out.Retired, out.WeekKey))
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every bot, profile and ranking entry, and reset the id pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			choice, err := promptChoice("Really delete all bot data", []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if choice != "yes" {
				printInfo("Aborted.")
				return nil
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			n, err := client.HardDelete(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Deleted %d bots.", n))
			return nil
		},
	}
}

func newBotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bots [week]",
		Short: "List the active roster for a week",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := weekFromArgs(args)
			if err != nil {
				return err
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Bots(ctx, week)
			if err != nil {
				return err
			}
			return renderRoster(out)
		},
	}
}

func newRunCmd() *cobra.Command {
	var force bool
	var day string
	var rush string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation window now",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := cl.RunRequest{Force: force}
			if day != "" {
				d, err := parseWeekday(day)
				if err != nil {
					return err
				}
				di := int(d)
				req.ForcedDay = &di
			}
			if rush != "" {
				on, err := parseOnOff(rush)
				if err != nil {
					return err
				}
				req.ForcedRush = &on
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Minute)
			defer cancel()
			report, err := client.RunWindow(ctx, req)
			if err != nil {
				return err
			}
			return renderRunReport(report)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if another instance holds the lock")
	cmd.Flags().StringVar(&day, "day", "", "pretend it is this weekday (mon..sun) for this run only")
	cmd.Flags().StringVar(&rush, "rush", "", "force rush-hour chasing on or off for this run only")
	return cmd
}

func newOverrideCmd() *cobra.Command {
	override := &cobra.Command{
		Use:   "override",
		Short: "Inspect or change the persistent simulation overrides",
	}

	override.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ov, err := client.GetOverride(ctx)
			if err != nil {
				return err
			}
			return renderOverride(ov)
		},
	})

	var day string
	var rush string
	set := &cobra.Command{
		Use:   "set",
		Short: "Persist a forced weekday and/or rush flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := cl.OverrideRequest{}
			if day != "" {
				d, err := parseWeekday(day)
				if err != nil {
					return err
				}
				di := int(d)
				req.ForcedDay = &di
			}
			if rush != "" {
				on, err := parseOnOff(rush)
				if err != nil {
					return err
				}
				req.ForcedRush = &on
			}
			if req.ForcedDay == nil && req.ForcedRush == nil {
				return fmt.Errorf("nothing to set: pass --day and/or --rush")
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := client.SetOverride(ctx, req); err != nil {
				return err
			}
			printSuccess("Override saved.")
			return nil
		},
	}
	set.Flags().StringVar(&day, "day", "", "forced weekday (mon..sun)")
	set.Flags().StringVar(&rush, "rush", "", "forced rush flag (on/off)")
	override.AddCommand(set)

	override.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := client.ClearOverride(ctx); err != nil {
				return err
			}
			printSuccess("Overrides cleared.")
			return nil
		},
	})

	return override
}

func newPoolCmd() *cobra.Command {
	pool := &cobra.Command{
		Use:   "pool",
		Short: "Reserved identity pool commands",
	}

	pool.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show pool size and tier levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			status, err := client.Pool(ctx)
			if err != nil {
				return err
			}
			return renderPool(status)
		},
	})

	pool.AddCommand(&cobra.Command{
		Use:   "seed <id> [id...]",
		Short: "Replace the pool contents with the given display ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("bad id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			status, err := client.SeedPool(ctx, ids)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Pool replaced with %d ids.", len(ids)))
			return renderPool(status)
		},
	})

	return pool
}

func newAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics [week]",
		Short: "Show real vs bot entry counts for a week",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := weekFromArgs(args)
			if err != nil {
				return err
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Analytics(ctx, week)
			if err != nil {
				return err
			}
			return renderAnalytics(out)
		},
	}
}

func newWinnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "winner <iphone|ktm> [week]",
		Short: "Pick the prize-draw winner ticket for a week",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prize := strings.ToLower(strings.TrimSpace(args[0]))
			week, err := weekFromArgs(args[1:])
			if err != nil {
				return err
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ticket, err := client.PickWinner(ctx, prize, week)
			if err != nil {
				return err
			}
			accent.Printf("\n== %s WINNER (%s) ==\n", strings.ToUpper(prize), week)
			return renderTicket(ticket)
		},
	}
}

func newTicketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ticket <iphone|ktm> [week]",
		Short: "Ensure the prize bot holds a draw ticket for a week",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prize := strings.ToLower(strings.TrimSpace(args[0]))
			week, err := weekFromArgs(args[1:])
			if err != nil {
				return err
			}
			client, err := newSessionClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ticket, err := client.EnsureParticipation(ctx, prize, week)
			if err != nil {
				return err
			}
			printSuccess("Ticket secured.")
			return renderTicket(ticket)
		},
	}
}
