package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/snippet-runner/internal/config"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "snippet",
		Short: "Sandboxed runner for JavaScript, Python and HTML/CSS snippets",
		Long: `snippet - run short code snippets in a sandbox.

JavaScript runs in an embedded interpreter with only a console. Python runs
in a WASI interpreter or a network-less container, depending on
python.backend. HTML and CSS are passed through as preview markup.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to a snippet-runner.yaml config file")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default from config)")

	root.AddCommand(newRunCmd(), newMCPCmd())
	return root
}

// loadConfig reads the config named by --config and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if _, err := config.ParseLevel(level); err != nil {
			return nil, err
		}
		cfg.Log.Level = level
	}
	return cfg, nil
}

// newLogger writes to w, which is stderr for every command so that stdout
// carries only snippet output or the MCP stream.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// detectLanguage prefers the explicit tag and falls back to the file
// extension.
func detectLanguage(langFlag, filename string) (string, error) {
	if lang := strings.TrimSpace(langFlag); lang != "" {
		return lang, nil
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".js", ".mjs":
		return "javascript", nil
	case ".py":
		return "python", nil
	case ".html", ".htm":
		return "html", nil
	case ".css":
		return "css", nil
	}
	return "", fmt.Errorf("language required: use --lang javascript, python, html or css")
}
