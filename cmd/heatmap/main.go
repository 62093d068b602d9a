package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pauljones0/post-heatmap/internal/app"
	"github.com/pauljones0/post-heatmap/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "heatmap",
		Short:        "Posting-time heatmaps for news accounts and publisher feeds",
		Long:         "Ingests Nitter account RSS and publisher feeds, bins posts into a Pacific Time day-of-week by hour grid, and writes JSON for the frontend.",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("data-dir", "", "Override DATA_DIR for outputs")
	root.PersistentFlags().Int("start-hour", -1, "Override HEATMAP_START_HOUR (0-23)")

	root.AddCommand(
		ingestCmd(),
		aggregateCmd(),
		insightsCmd(),
		runCmd(),
	)
	return root
}

// withApp loads configuration, applies flag overrides and hands a wired
// App to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		if cfg.RawFile == filepath.Join(cfg.DataDir, "x_raw.json") {
			cfg.RawFile = filepath.Join(dir, "x_raw.json")
		}
		cfg.DataDir = dir
	}
	if h, _ := cmd.Flags().GetInt("start-hour"); h >= 0 {
		cfg.StartHour = h
	}
	slog.SetDefault(app.NewLogger(os.Stderr, cfg))

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch accounts and publisher feeds into the raw file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Ingest(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d records from %d accounts and %d publishers (%d failed)\n",
					rep.Records, rep.Accounts, rep.Publishers, rep.Failed)
				return nil
			})
		},
	}
}

func aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Bin the raw file into heatmaps and a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Aggregate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d posts\n", rep.Processed)
				return nil
			})
		},
	}
}

func insightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Summarize the aggregated posts with Gemini",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ins, err := a.Insights(ctx)
				if err != nil {
					return err
				}
				if ins == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "GEMINI_API_KEY not set, insights skipped")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote insights with %d bullets\n", len(ins.Bullets))
				return nil
			})
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Ingest, aggregate and summarize in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d records, processed %d posts\n",
					res.Ingest.Records, res.Aggregate.Processed)
				return nil
			})
		},
	}
}
