package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hourlypics/internal/app"
	"hourlypics/internal/storage"
	logx "hourlypics/pkg/logx"
)

var previewPosts int

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "List images eligible for the next queue refill and the latest posts",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().IntVar(&previewPosts, "posts", 5, "number of recent posts to show (0 hides them)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewApp(cfg, app.WithLogger(logx.Nop()))
	if err != nil {
		return err
	}
	defer func() { _ = a.Stop(cmd.Context(), app.StopAppStop) }()

	out := cmd.OutOrStdout()
	eligible, err := a.Preview(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d eligible images (queue size %d):\n", len(eligible), cfg.Settings.QueueSize())
	for _, name := range eligible {
		fmt.Fprintf(out, "  %s\n", name)
	}
	if len(eligible) < cfg.Settings.QueueSize() {
		fmt.Fprintln(out, "warning: not enough eligible images to fill the queue")
	}

	if previewPosts <= 0 {
		return nil
	}
	posts, err := a.RecentPosts(cmd.Context(), previewPosts)
	if errors.Is(err, storage.ErrDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nlatest %d posts:\n", len(posts))
	for _, p := range posts {
		fmt.Fprintf(out, "  %s  %-24s %s\n", p.At.Local().Format("2006-01-02 15:04"), p.Filename, p.URL)
	}
	return nil
}
