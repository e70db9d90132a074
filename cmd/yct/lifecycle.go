package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shilovk/yandex-cloud-tools/internal/operation"
)

func newStartCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "start <instance-id>",
		Short: "Power an instance on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle("start", args[0], wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the operation completes")
	return cmd
}

func newStopCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "stop <instance-id>",
		Short: "Shut an instance down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle("stop", args[0], wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the operation completes")
	return cmd
}

func newRestartCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "restart <instance-id>",
		Short: "Reboot an instance in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle("restart", args[0], wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the operation completes")
	return cmd
}

func runLifecycle(kind, id string, wait bool) error {
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

	var res *operation.Result
	switch kind {
	case "start":
		res, err = k.StartInstance(ctx, id, wait)
	case "stop":
		res, err = k.StopInstance(ctx, id, wait)
	case "restart":
		res, err = k.RestartInstance(ctx, id, wait)
	}
	if err != nil {
		return err
	}
	if res != nil {
		fmt.Println(res.Message)
	}
	return nil
}
