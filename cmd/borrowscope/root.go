package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/borrowscope/borrowscope/internal/config"
)

// Version information (set via ldflags during build).
var (
	buildVersion = "dev"
	commit       = "unknown"
	date         = "unknown"
)

var (
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	codeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).PaddingLeft(2)
)

var (
	flagConfig  string
	flagLogFile string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "borrowscope",
		Short:         "Terminal viewer for rustowl ownership and lifetime overlays",
		Long:          "borrowscope opens a Rust source file and visualizes ownership,\nborrows, moves, and lifetimes as reported by the rustowl analyzer.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to configuration file")
	root.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to this file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
		return 1
	}
	return 0
}

// activeConfigPath returns the config file selected by flag or
// default path. Everything that reads or writes configuration goes
// through the same path.
func activeConfigPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the active config file.
func loadConfig() (config.Config, error) {
	path, err := activeConfigPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// setupLogging routes slog to the configured log file. Logging to the
// terminal would corrupt the tcell screen, so without a file the logs
// are discarded.
func setupLogging(cfg config.Config, interactive bool) (func(), error) {
	path := flagLogFile
	if path == "" {
		path = cfg.LogFile
	}
	if path == "" {
		if interactive {
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
			return func() {}, nil
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return func() { f.Close() }, nil
}
