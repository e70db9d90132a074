package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create, list and prune disk snapshots",
	}
	cmd.AddCommand(newSnapshotCreateCmd())
	cmd.AddCommand(newSnapshotListCmd())
	cmd.AddCommand(newSnapshotPruneCmd())
	return cmd
}

func newSnapshotCreateCmd() *cobra.Command {
	var (
		disk string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "create <instance-id>",
		Short: "Snapshot an instance's disk",
		Args:  cobra.ExactArgs(1),
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

			inst, err := k.Instance(ctx, args[0])
			if err != nil {
				return err
			}
			opID, err := k.ManagerFor(inst).Create(ctx, disk)
			if err != nil {
				return err
			}
			fmt.Printf("operation %s started\n", opID)

			if wait {
				res, err := k.Waiter().Wait(ctx, opID)
				if err != nil {
					return err
				}
				fmt.Println(res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&disk, "disk", "", "Disk to snapshot (defaults to the boot disk)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the snapshot completes")
	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	var old bool
	cmd := &cobra.Command{
		Use:   "list <instance-id>",
		Short: "List an instance's snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := setup(ctx)
			if err != nil {
				return err
			}
			k, err := buildKeeper(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer k.Close()

			inst, err := k.Instance(ctx, args[0])
			if err != nil {
				return err
			}
			mgr := k.ManagerFor(inst)

			snaps, err := mgr.List(ctx)
			if err != nil {
				return err
			}
			if old {
				snaps, err = mgr.ListOld(ctx)
				if err != nil {
					return err
				}
			}
			if len(snaps) == 0 {
				fmt.Println("No snapshots found.")
				return nil
			}

			now := time.Now()
			fmt.Printf("%-22s %-34s %-22s %-21s %s\n", "ID", "NAME", "SOURCE DISK", "CREATED", "AGE")
			fmt.Println(strings.Repeat("-", 110))
			for _, s := range snaps {
				age := "-"
				if days, err := s.AgeDays(now); err == nil {
					age = fmt.Sprintf("%dd", days)
				}
				fmt.Printf("%-22s %-34s %-22s %-21s %s\n",
					s.ID, s.Name, s.SourceDiskID, s.CreatedAt, age)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&old, "old", false, "Only snapshots past the retention window")
	return cmd
}

func newSnapshotPruneCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune [instance-id...]",
		Short: "Delete snapshots past the retention window",
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

			if dryRun {
				ids, err := targetInstances(cfg, args)
				if err != nil {
					return err
				}
				for _, id := range ids {
					inst, err := k.Instance(ctx, id)
					if err != nil {
						return err
					}
					old, err := k.ManagerFor(inst).ListOld(ctx)
					if err != nil {
						return err
					}
					for _, s := range old {
						fmt.Printf("would delete %s (%s)\n", s.ID, s.Name)
					}
				}
				return nil
			}

			rep, err := k.PruneRun(ctx, args)
			if err != nil {
				return err
			}
			return printRunSummary(rep)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be deleted without deleting")
	return cmd
}
