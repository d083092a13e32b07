// Package main provides the CLI entrypoint for formline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/formline/internal/source"
	"github.com/cognicore/formline/pkg/formline"
	"github.com/cognicore/formline/pkg/formline/config"
	"github.com/cognicore/formline/pkg/formline/store"
	"github.com/cognicore/formline/pkg/formline/store/sqlite"
)

const defaultDB = "formline.db"

var (
	ingestConfig string
	ingestDB     string
	ingestEpoch  int

	dbPath    string
	racesDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "formline",
		Short:        "Decode form books and reconcile runs into races",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newRaceCmd())
	rootCmd.AddCommand(newRacesCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILES...",
		Short: "Decode .jsonl page dumps or .html pages into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngestCmd,
	}
	cmd.Flags().StringVar(&ingestConfig, "config", "", "config file (.yaml or .toml)")
	cmd.Flags().StringVar(&ingestDB, "db", "", "sqlite database (overrides pipeline.db)")
	cmd.Flags().IntVar(&ingestEpoch, "epoch", 0, "foaling-year epoch for .html pages")
	return cmd
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ingestConfig)
	if err != nil {
		return err
	}
	if ingestDB != "" {
		cfg.Pipeline.DB = ingestDB
	}
	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	docs, err := loadDocuments(args, ingestEpoch)
	if err != nil {
		return err
	}

	st, err := sqlite.OpenSQLite(ctx, cfg.Pipeline.DB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}

	f := formline.New(formline.Options{
		Store:   st,
		Decoder: cfg.DecodeConfig(),
		Engine:  cfg.EngineConfig(),
		Workers: cfg.Pipeline.Workers,
		Logger:  logger,
	})

	start := time.Now()
	ingestErr := f.Ingest(ctx, docs)
	stats := f.Stats()
	rep, closeErr := f.Close(context.WithoutCancel(ctx))

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderIngest(stats, time.Since(start)))
	if len(rep.Unresolved) > 0 {
		fmt.Fprintln(out, renderUnresolved(rep))
	}

	if ingestErr != nil {
		return fmt.Errorf("ingest: %w", ingestErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close db: %w", closeErr)
	}
	return nil
}

// loadDocuments reads every path by extension and tokenizes it.
func loadDocuments(paths []string, epoch int) ([]formline.Document, error) {
	var docs []formline.Document
	for _, path := range paths {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl":
			loaded, err := source.LoadJSONL(path)
			if err != nil {
				return nil, err
			}
			for _, d := range loaded {
				docs = append(docs, formline.Document{ID: d.ID, Tokens: d.Tokens()})
			}
		case ".html", ".htm":
			if epoch <= 0 {
				return nil, fmt.Errorf("%s: --epoch is required for html pages", path)
			}
			d, err := source.LoadHTML(path, epoch)
			if err != nil {
				return nil, err
			}
			docs = append(docs, formline.Document{ID: d.ID, Tokens: d.Tokens()})
		default:
			return nil, fmt.Errorf("%s: unsupported file type", path)
		}
	}
	return docs, nil
}

func newRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race ID",
		Short: "Show a stored race",
		Args:  cobra.ExactArgs(1),
		RunE:  runRaceCmd,
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDB, "sqlite database")
	return cmd
}

func runRaceCmd(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		race, err := st.GetRace(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderRace(race))
		return nil
	})
}

func newRacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "races",
		Short: "List the races stored for a date",
		Args:  cobra.NoArgs,
		RunE:  runRacesCmd,
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDB, "sqlite database")
	cmd.Flags().StringVar(&racesDate, "date", "", "race date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("date")
	return cmd
}

func runRacesCmd(cmd *cobra.Command, _ []string) error {
	day, err := time.Parse("2006-01-02", racesDate)
	if err != nil {
		return fmt.Errorf("invalid --date value: %w", err)
	}
	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		races, err := st.RacesOn(ctx, day)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderRaceList(races))
		return nil
	})
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store counts",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDB, "sqlite database")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		counts, err := st.Counts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderCounts(counts))
		return nil
	})
}

func withStore(cmd *cobra.Command, fn func(context.Context, store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to close db: %v\n", cerr)
		}
	}()
	return fn(ctx, st)
}
