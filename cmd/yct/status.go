package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [instance-id...]",
		Short: "Show instance states",
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

			ids, err := targetInstances(cfg, args)
			if err != nil {
				return err
			}

			fmt.Printf("%-22s %-22s %-20s %-22s %s\n", "ID", "FOLDER", "NAME", "BOOT DISK", "STATUS")
			fmt.Println(strings.Repeat("-", 100))
			for _, id := range ids {
				inst, err := k.Instance(ctx, id)
				if err != nil {
					return err
				}
				status, err := inst.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%-22s %-22s %-20s %-22s %s\n",
					inst.ID(), orDash(inst.FolderID()), orDash(inst.Name()),
					orDash(inst.BootDiskID()), status)
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
