package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "check", "preview"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
	if f := rootCmd.PersistentFlags().Lookup("settings"); f == nil || f.DefValue != "settings.yaml" {
		t.Fatalf("unexpected settings flag: %+v", f)
	}
}

// writePreviewConfig writes settings and secrets for three images and
// returns their paths.
func writePreviewConfig(t *testing.T, dir, storage string) (settings, secrets string) {
	t.Helper()
	imgs := filepath.Join(dir, "images")
	if err := os.Mkdir(imgs, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.png", "b.jpg", "c.webp"} {
		if err := os.WriteFile(filepath.Join(imgs, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	settings = filepath.Join(dir, "settings.yaml")
	body := "instance_url: https://example.social\n" +
		"images_path: " + imgs + "\n" +
		"image_queue_size: 2\n" +
		"recents_file: " + filepath.Join(dir, "recent_files.txt") + "\n" +
		"storage:\n" + storage
	if err := os.WriteFile(settings, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	secrets = filepath.Join(dir, "secrets.yaml")
	if err := os.WriteFile(secrets, []byte("client_key: k\nclient_secret: s\naccess_token: t\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return settings, secrets
}

func TestPreviewCommand(t *testing.T) {
	settings, secrets := writePreviewConfig(t, t.TempDir(), "  driver: none\n")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"preview", "--settings", settings, "--secrets", secrets})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("preview: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "3 eligible images") || !strings.Contains(got, "c.webp") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

func TestPreviewLeavesNoPostLog(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "hourlypics")
	settings, secrets := writePreviewConfig(t, dir, "  driver: file\n  path: "+prefix+"\n")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"preview", "--settings", settings, "--secrets", secrets})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out.String(), "latest 0 posts") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if _, err := os.Stat(prefix + ".posts.jsonl"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("preview created the post log, stat err=%v", err)
	}
}
