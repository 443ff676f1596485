package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hourlypics/internal/config"
)

var (
	settingsPath string
	secretsPath  string
)

var rootCmd = &cobra.Command{
	Use:   "hourlypics",
	Short: "Post a random image from a folder to Mastodon every hour",
	Long: `hourlypics keeps a queue of images from a local folder and posts one to a
Mastodon account at a fixed minute past every hour. Recently posted images are
remembered so they do not repeat until the queue has cycled.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", config.DefaultSettingsFile, "path to settings (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&secretsPath, "secrets", config.DefaultSecretsFile, "path to secrets (yaml or json)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewManager(settingsPath, secretsPath).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
