// shopmigrate migrates a denormalized legacy shop database into the
// multi-tenant catalog schema, one phase per invocation.
//
// Phase ordering is an operational runbook, not enforced: run
// categories → attributes → materials → products → attribute-values →
// images → stock → sets, or `shopmigrate all` for the whole sequence.
// Every phase is idempotent and safe to re-run.
package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"shopmigrate/internal/config"
	"shopmigrate/internal/db"
	"shopmigrate/internal/metrics"
	"shopmigrate/internal/metrics/prompush"
	"shopmigrate/internal/migrate"
)

func main() {
	// .env is optional convenience for local runs; real environment wins.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if db.IsConnErr(err) {
			log.Printf("fatal: %v", err)
			os.Exit(2)
		}
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default(os.Getenv)

	root := &cobra.Command{
		Use:           "shopmigrate",
		Short:         "Migrate the legacy shop database into the multi-tenant catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fl := root.PersistentFlags()
	fl.StringVar(&cfg.SourceDriver, "source-driver", cfg.SourceDriver, "legacy store driver: mysql, sqlserver, or sqlite")
	fl.StringVar(&cfg.SourceDSN, "source-dsn", cfg.SourceDSN, "legacy store DSN")
	fl.StringVar(&cfg.TargetDriver, "target-driver", cfg.TargetDriver, "catalog store driver: postgres or sqlite")
	fl.StringVar(&cfg.TargetDSN, "target-dsn", cfg.TargetDSN, "catalog store DSN")
	fl.Int64Var(&cfg.TenantID, "tenant", cfg.TenantID, "target tenant id")
	fl.StringVar(&cfg.ArtifactsDir, "artifacts-dir", cfg.ArtifactsDir, "directory for correlation id-map files")
	fl.StringVar(&cfg.SkippedDir, "skipped-dir", cfg.SkippedDir, "directory for skipped-row CSV logs")
	fl.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "grouping strategy: exact, basename, or composite")
	fl.StringVar(&cfg.SentinelCategory, "sentinel-category", cfg.SentinelCategory, "category that triggers composite grouping")
	fl.StringVar(&cfg.Terminals, "terminal-tokens", cfg.Terminals, "comma-separated terminal axis tokens")
	fl.IntVar(&cfg.Limit, "limit", cfg.Limit, "max legacy rows per run (0 = all)")
	fl.IntVar(&cfg.Offset, "offset", cfg.Offset, "legacy row offset for batched runs")
	fl.StringVar(&cfg.PushGateway, "pushgateway", cfg.PushGateway, "Prometheus Pushgateway URL (empty disables)")
	fl.StringVar(&cfg.MetricsJob, "metrics-job", cfg.MetricsJob, "Pushgateway job name")

	root.AddCommand(&cobra.Command{
		Use:   "init-schema",
		Short: "Create the catalog tables in the target store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate.InitSchema(cmd.Context(), cfg)
		},
	})

	for _, name := range migrate.PhaseNames() {
		root.AddCommand(&cobra.Command{
			Use:   name,
			Short: "Run the " + name + " migration phase",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPhases(cmd.Context(), cfg, []string{name})
			},
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run every phase in runbook order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd.Context(), cfg, migrate.PhaseNames())
		},
	})

	return root
}

func runPhases(ctx context.Context, cfg *config.Config, names []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.PushGateway != "" {
		b, err := prompush.NewBackend(cfg.MetricsJob, cfg.PushGateway)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics push: %v", err)
			}
		}()
	}

	r, err := migrate.NewRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close(ctx)

	log.Printf("run %s: phases %v (tenant %d)", r.RunID, names, cfg.TenantID)
	for _, name := range names {
		if _, err := migrate.Run(ctx, r, name); err != nil {
			return err
		}
	}
	return nil
}
