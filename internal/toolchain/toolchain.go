// Package toolchain locates, validates, and installs the rustowl binary.
//
// Resolution walks three sources in order: an explicit configured path, the
// borrowscope-managed install directory, and the ambient PATH. The first
// binary that validates wins. A configured path that fails validation is a
// hard error, never a fallthrough: an explicit override signals operator
// intent and must be honored or rejected.
//
// When nothing validates, installation is attempted: cargo-binstall when
// available, otherwise a source build from a managed clone of the rustowl
// repository. A symlink is laid into the install directory afterwards so the
// next resolution succeeds without rebuilding.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/borrowscope/borrowscope/internal/version"
)

// Origin identifies where a resolved binary came from.
type Origin int

const (
	// OriginConfigured means the user-configured explicit path.
	OriginConfigured Origin = iota
	// OriginCachedInstall means the borrowscope-managed install directory.
	OriginCachedInstall
	// OriginGlobalPath means the binary was found on PATH.
	OriginGlobalPath
)

// String returns a human-readable origin name.
func (o Origin) String() string {
	switch o {
	case OriginConfigured:
		return "configured"
	case OriginCachedInstall:
		return "cached-install"
	case OriginGlobalPath:
		return "global-path"
	default:
		return "unknown"
	}
}

// ServerLocation is a validated, runnable rustowl binary. Immutable once
// resolved; a restart or update re-resolves from scratch.
type ServerLocation struct {
	Path   string
	Origin Origin
}

// RepoURL is the rustowl source repository used for source builds.
const RepoURL = "https://github.com/cordx56/rustowl"

const binaryName = "rustowl"

// Resolver finds or installs the rustowl binary.
type Resolver struct {
	// ExplicitPath is the user-configured binary override, empty if unset.
	ExplicitPath string

	// CacheDir is the root of the managed cache (source clone, build
	// output, install symlinks).
	CacheDir string

	// Required is the version every candidate must match exactly.
	Required version.Version

	// Tool names, overridable for tests.
	Git      string
	Cargo    string
	Binstall string

	// LookPath resolves a name on the ambient PATH, overridable for tests.
	LookPath func(name string) (string, error)

	// installs collapses concurrent install attempts into one.
	installs singleflight.Group
}

// NewResolver creates a resolver with standard tool names.
func NewResolver(explicitPath, cacheDir string, required version.Version) *Resolver {
	return &Resolver{
		ExplicitPath: explicitPath,
		CacheDir:     cacheDir,
		Required:     required,
		Git:          "git",
		Cargo:        "cargo",
		Binstall:     "cargo-binstall",
		LookPath:     exec.LookPath,
	}
}

// DefaultCacheDir returns the managed cache location.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(dir, "borrowscope"), nil
}

// InstallBinDir returns the directory receiving install symlinks,
// checked as resolution step two.
func (r *Resolver) InstallBinDir() string {
	return filepath.Join(r.CacheDir, "bin")
}

func (r *Resolver) cloneDir() string {
	return filepath.Join(r.CacheDir, "rustowl-src")
}

func (r *Resolver) buildRoot() string {
	return filepath.Join(r.CacheDir, "build")
}

// Resolve finds a validated binary, installing one if necessary.
func (r *Resolver) Resolve(ctx context.Context) (*ServerLocation, error) {
	if loc, err := r.resolveExisting(ctx); err != nil || loc != nil {
		return loc, err
	}

	slog.Info("no usable rustowl binary found, installing", "required", r.Required)
	if err := r.Install(ctx); err != nil {
		return nil, err
	}

	loc, err := r.resolveExisting(ctx)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, &InstallError{
			Reason:   fmt.Errorf("installation completed but no binary validates against %s", r.Required),
			Required: r.Required,
		}
	}
	return loc, nil
}

// ForceUpdate reinstalls even when a valid binary exists, then re-resolves.
// Used when the server is suspected corrupt or incompatible.
func (r *Resolver) ForceUpdate(ctx context.Context) (*ServerLocation, error) {
	// The explicit-path contract holds for updates too: an override is
	// never replaced behind the operator's back.
	if r.ExplicitPath != "" {
		return r.resolveExplicit(ctx)
	}

	if err := r.Install(ctx); err != nil {
		return nil, err
	}
	return r.Resolve(ctx)
}

// resolveExisting walks the resolution order without installing.
// Returns (nil, nil) when nothing validates and installation should run.
func (r *Resolver) resolveExisting(ctx context.Context) (*ServerLocation, error) {
	if r.ExplicitPath != "" {
		return r.resolveExplicit(ctx)
	}

	installed := filepath.Join(r.InstallBinDir(), binaryName)
	if _, err := os.Stat(installed); err == nil {
		if _, err := r.Validate(ctx, installed); err == nil {
			return &ServerLocation{Path: installed, Origin: OriginCachedInstall}, nil
		}
		slog.Debug("cached install failed validation", "path", installed)
	}

	if found, err := r.LookPath(binaryName); err == nil {
		if _, err := r.Validate(ctx, found); err == nil {
			return &ServerLocation{Path: found, Origin: OriginGlobalPath}, nil
		}
		slog.Debug("PATH binary failed validation", "path", found)
	}

	return nil, nil
}

func (r *Resolver) resolveExplicit(ctx context.Context) (*ServerLocation, error) {
	v, err := r.Validate(ctx, r.ExplicitPath)
	if err != nil {
		return nil, &ExplicitPathError{Path: r.ExplicitPath, Err: err}
	}
	slog.Info("using configured rustowl binary", "path", r.ExplicitPath, "version", v)
	return &ServerLocation{Path: r.ExplicitPath, Origin: OriginConfigured}, nil
}

// Validate invokes the candidate with the version query and checks the
// printed version against Required. Empty output means the binary is not a
// compatible rustowl.
func (r *Resolver) Validate(ctx context.Context, path string) (version.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	out, err := runCommand(ctx, "", path, "--version", "--quiet")
	if err != nil {
		return version.Version{}, fmt.Errorf("version query: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return version.Version{}, fmt.Errorf("version query printed nothing")
	}

	v, err := version.Parse(out)
	if err != nil {
		return version.Version{}, err
	}
	if !v.Equal(r.Required) {
		return v, fmt.Errorf("version %s does not match required %s", v, r.Required)
	}
	return v, nil
}

// runCommand runs one subprocess, returning stdout. On failure the error
// carries trimmed stderr.
func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}
