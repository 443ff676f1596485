package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hourlypics/internal/app"
	logx "hourlypics/pkg/logx"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate config, the images folder and credentials, then exit",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewApp(cfg, app.WithLogger(logx.NewConsole(cfg.Settings.Logging.Level)))
	if err != nil {
		return err
	}
	defer func() { _ = a.Stop(cmd.Context(), app.StopAppStop) }()

	if err := a.Setup(cmd.Context()); err != nil {
		return err
	}
	s := cfg.Settings
	fmt.Fprintf(cmd.OutOrStdout(), "ok: logged in as @%s on %s, posting at :%02d every hour\n",
		a.Account().Username, s.InstanceURL, s.Minute)
	return nil
}
