package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [instance-id...]",
		Short: "Snapshot instances and prune their old snapshots",
		Long: `Runs a full backup pass: snapshot each instance's boot disk (and
secondary disks when configured), wait for the snapshots to complete,
then delete the snapshots past the retention window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, logger, err := setup(ctx)
			if err != nil {
				return err
			}
			k, err := buildKeeper(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer k.Close()

			rep, err := k.BackupRun(ctx, args)
			if err != nil {
				return err
			}
			return printRunSummary(rep)
		},
	}
}
