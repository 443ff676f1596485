package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"hourlypics/internal/app"
	logx "hourlypics/pkg/logx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hourly poster until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reason := app.StopAppStop
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(stopCtx, reason)
	}()

	if err := a.Setup(ctx); err != nil {
		reason = app.StopFatalError
		a.Logger().Error("setup failed", logx.Err(err))
		return err
	}
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		reason = app.StopFatalError
		return err
	}
	if ctx.Err() != nil {
		reason = app.StopSignal
	}
	return nil
}
