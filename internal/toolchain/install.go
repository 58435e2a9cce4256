package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// installTimeout bounds a full source build. Cold cargo builds of the
// analyzer are slow.
const installTimeout = 20 * time.Minute

// Install acquires a rustowl binary: cargo-binstall when present, source
// build otherwise. Concurrent callers share one attempt.
func (r *Resolver) Install(ctx context.Context) error {
	_, err, _ := r.installs.Do("install", func() (any, error) {
		return nil, r.install(ctx)
	})
	return err
}

func (r *Resolver) install(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	binstallErr := r.tryBinstall(ctx)
	if binstallErr == nil {
		return nil
	}
	slog.Info("binary install unavailable, building from source", "reason", binstallErr)

	if buildErr := r.buildFromSource(ctx); buildErr != nil {
		return &InstallError{
			Reason:   fmt.Errorf("binstall: %v; source build: %w", binstallErr, buildErr),
			Required: r.Required,
		}
	}
	return nil
}

// tryBinstall installs a prebuilt binary via cargo-binstall. The binary
// lands in cargo's bin directory, which resolution step three finds on PATH.
func (r *Resolver) tryBinstall(ctx context.Context) error {
	if _, err := r.LookPath(r.Binstall); err != nil {
		return fmt.Errorf("%s not found on PATH", r.Binstall)
	}

	slog.Info("installing rustowl via cargo-binstall", "version", r.Required)
	_, err := runCommand(ctx, "", r.Binstall,
		binaryName,
		"--version", r.Required.String(),
		"--no-confirm",
	)
	if err != nil {
		return err
	}
	return nil
}

// buildFromSource clones or refreshes the rustowl source tree and builds it
// with cargo, then links the result into the install directory.
func (r *Resolver) buildFromSource(ctx context.Context) error {
	if _, err := r.LookPath(r.Cargo); err != nil {
		return fmt.Errorf("%s not found on PATH", r.Cargo)
	}

	clone := r.cloneDir()
	if err := r.ensureClone(ctx, clone); err != nil {
		return err
	}

	root := r.buildRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating build root: %w", err)
	}

	slog.Info("building rustowl from source", "clone", clone, "root", root)
	if _, err := runCommand(ctx, clone, r.Cargo,
		"install", "--path", ".", "--root", root, "--locked",
	); err != nil {
		return fmt.Errorf("cargo build: %w", err)
	}

	built := filepath.Join(root, "bin", binaryName)
	if _, err := os.Stat(built); err != nil {
		return fmt.Errorf("build produced no binary at %s: %w", built, err)
	}

	return r.linkInstalled(built)
}

// ensureClone guarantees an up-to-date clone at dir. A failing pull does not
// leave a broken tree behind: the directory is removed and re-cloned.
func (r *Resolver) ensureClone(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		_, pullErr := runCommand(ctx, dir, r.Git, "pull", "--ff-only")
		if pullErr == nil {
			return nil
		}
		slog.Warn("pull failed, re-cloning", "dir", dir, "error", pullErr)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing stale clone: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	slog.Info("cloning rustowl", "url", RepoURL, "dir", dir)
	if _, err := runCommand(ctx, "", r.Git, "clone", "--depth", "1", RepoURL, dir); err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	return nil
}

// linkInstalled lays a symlink in the install directory pointing at the
// freshly built binary so future resolutions skip the build.
func (r *Resolver) linkInstalled(target string) error {
	binDir := r.InstallBinDir()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating install dir: %w", err)
	}

	link := filepath.Join(binDir, binaryName)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old link: %w", err)
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("linking %s: %w", link, err)
	}

	slog.Info("rustowl installed", "link", link, "target", target)
	return nil
}
