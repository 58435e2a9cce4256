package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/borrowscope/borrowscope/internal/app"
	"github.com/borrowscope/borrowscope/internal/config"
	"github.com/borrowscope/borrowscope/internal/session"
	"github.com/borrowscope/borrowscope/internal/status"
	"github.com/borrowscope/borrowscope/internal/toolchain"
	"github.com/borrowscope/borrowscope/internal/ui"
	"github.com/borrowscope/borrowscope/internal/version"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.rs>",
		Short: "Open a Rust file with ownership overlays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViewer(cmd.Context(), args[0])
		},
	}
}

func runViewer(ctx context.Context, path string) error {
	configPath, err := activeConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	closeLogs, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer closeLogs()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	content, err := app.ReadDocument(abs)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workspace := filepath.Dir(abs)
	sup := session.NewSupervisor(resolver, workspace, nil)
	if err := sup.Start(ctx); err != nil {
		return resolverError(err)
	}
	defer sup.Stop(context.Background())

	viewer, err := ui.NewViewer()
	if err != nil {
		return fmt.Errorf("creating terminal: %w", err)
	}
	if err := viewer.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	defer viewer.Close()

	model := status.NewModel(viewer.SetStatus)
	router := app.New(cfg, configPath, sup, viewer, model, viewer.Inputs())

	viewer.LoadDocument(abs, content)
	if err := router.OpenDocument(abs, content); err != nil {
		return err
	}

	if cfgWatcher, err := config.NewWatcher(configPath, router.ReloadConfig); err == nil {
		cfgWatcher.Start(ctx)
		defer cfgWatcher.Stop()
	}

	docWatcher, err := app.WatchDocument(abs, viewer.Cursor, router.DocumentSaved)
	if err == nil {
		defer docWatcher.Close()
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go func() {
		<-runCtx.Done()
		viewer.Stop()
	}()

	go viewer.Run(runCtx)
	router.Run(runCtx)
	return nil
}

func newResolver(cfg config.Config) (*toolchain.Resolver, error) {
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		dir, err := toolchain.DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		cacheDir = dir
	}
	return toolchain.NewResolver(cfg.ServerPath, cacheDir, version.Required), nil
}

// resolverError decorates resolution failures with copy-pasteable
// recovery instructions.
func resolverError(err error) error {
	var installErr *toolchain.InstallError
	if errors.As(err, &installErr) {
		lines := []string{
			errStyle.Render("rustowl could not be installed: ") + installErr.Reason.Error(),
		}
		for _, line := range strings.Split(installErr.Instructions(), "\n") {
			lines = append(lines, codeStyle.Render(line))
		}
		return errors.New(strings.Join(lines, "\n"))
	}
	var pathErr *toolchain.ExplicitPathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s\n%s",
			errStyle.Render("configured rustowl binary is unusable"),
			noteStyle.Render(pathErr.Error()))
	}
	return err
}
