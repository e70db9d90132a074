package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shilovk/yandex-cloud-tools/internal/config"
	"github.com/shilovk/yandex-cloud-tools/internal/keeper"
	"github.com/shilovk/yandex-cloud-tools/internal/report"
	"github.com/shilovk/yandex-cloud-tools/internal/secrets"
	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// setup loads the config and installs the redacting logger shared by
// every command.
func setup(ctx context.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(ctx, cfgPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	format := cfg.Log.Format
	if logFormat != "" {
		format = logFormat
	}

	base := telemetry.NewLogger(os.Stderr, level, format)
	logger := slog.New(secrets.NewRedactor(base.Handler(), cfg.OAuthToken))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// buildKeeper wires the keeper, exchanging the OAuth token for an IAM
// token up front. The caller owns Close.
func buildKeeper(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*keeper.Keeper, error) {
	return keeper.New(ctx, cfg, keeper.Options{Logger: logger})
}

// targetInstances resolves command arguments against the configured
// fleet.
func targetInstances(cfg *config.Config, args []string) ([]string, error) {
	ids := args
	if len(ids) == 0 {
		ids = cfg.Instances
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no instances given or configured")
	}
	return ids, nil
}

func printRunSummary(rep *report.RunReport) error {
	created, pruned, errs := rep.Counts()
	fmt.Printf("run %s: %d instances, %d snapshots created, %d pruned, %d errors\n",
		rep.RunID, len(rep.Instances), created, pruned, errs)
	for _, ir := range rep.Instances {
		for _, e := range ir.Errors {
			fmt.Printf("  %s: %s\n", ir.InstanceID, e)
		}
	}
	if errs > 0 {
		return fmt.Errorf("%d operations failed", errs)
	}
	return nil
}
