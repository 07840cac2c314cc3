package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "quickbuck/internal/cli"
	"quickbuck/internal/config"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "qbk",
		Short:        "QuickBuck operator tool",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newTickCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newTickCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Trigger one tick manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			out, err := newClient(apiBase).TriggerTick(ctx)
			if err != nil {
				if strings.Contains(err.Error(), "HTTP 409") {
					printWarn("Tick already running; try again later.")
					return nil
				}
				return err
			}
			printOK(fmt.Sprintf("Tick %v complete", out["tick_number"]))
			printKV("bot purchases", out["bot_purchases"])
			printKV("spent cents", out["total_spent_cents"])
			printKV("stocks updated", out["stocks_updated"])
			printKV("crypto updates", out["crypto_updates"])
			printKV("loans processed", out["loans_processed"])
			printKV("players processed", out["players_processed"])
			return nil
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent tick history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).TickHistory(ctx, limit)
			if err != nil {
				return err
			}
			entries, _ := out["entries"].([]any)
			if len(entries) == 0 {
				printWarn("No ticks recorded yet.")
				return nil
			}
			for _, e := range entries {
				entry, _ := e.(map[string]any)
				purchases, _ := entry["bot_purchases"].([]any)
				printHeading(fmt.Sprintf("tick %v at %v", entry["tick_number"], entry["timestamp"]))
				printKV("purchases", len(purchases))
				printKV("spent cents", entry["total_budget_spent_cents"])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "entries to show")
	return cmd
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the net worth leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx)
			if err != nil {
				return err
			}
			rows, _ := out["rows"].([]any)
			if len(rows) == 0 {
				printWarn("No players yet.")
				return nil
			}
			printHeading("net worth leaderboard")
			for _, r := range rows {
				row, _ := r.(map[string]any)
				fmt.Printf("%4v  %-20v %v\n", row["rank"], row["username"], row["net_worth_cents"])
			}
			return nil
		},
	}
}
