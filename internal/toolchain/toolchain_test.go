package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borrowscope/borrowscope/internal/version"
)

var required = version.Version{Major: 0, Minor: 4, Patch: 2}

// writeScript writes an executable shell stub and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require POSIX")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// fakeBinary returns a stub that answers --version --quiet with out.
func fakeBinary(t *testing.T, dir, name, out string) string {
	t.Helper()
	body := "if [ \"$1\" = \"--version\" ]; then printf '%s\\n' \"" + out + "\"; fi\n"
	return writeScript(t, dir, name, body)
}

// noLookPath fails every PATH lookup.
func noLookPath(string) (string, error) {
	return "", errors.New("not found")
}

func newTestResolver(t *testing.T, explicit string) *Resolver {
	t.Helper()
	r := NewResolver(explicit, t.TempDir(), required)
	r.LookPath = noLookPath
	return r
}

func TestResolveExplicitPathValid(t *testing.T) {
	dir := t.TempDir()
	bin := fakeBinary(t, dir, "rustowl", "0.4.2")

	r := newTestResolver(t, bin)
	loc, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, bin, loc.Path)
	assert.Equal(t, OriginConfigured, loc.Origin)
}

func TestResolveExplicitPathNoVersionOutput(t *testing.T) {
	dir := t.TempDir()
	bin := writeScript(t, dir, "rustowl", "exit 0\n")

	r := newTestResolver(t, bin)
	r.LookPath = func(name string) (string, error) {
		t.Errorf("resolution fell through to PATH lookup of %q despite explicit override", name)
		return "", errors.New("not found")
	}

	_, err := r.Resolve(context.Background())
	require.Error(t, err)

	var explicitErr *ExplicitPathError
	require.ErrorAs(t, err, &explicitErr)
	assert.Equal(t, bin, explicitErr.Path)
	assert.Contains(t, err.Error(), bin)
}

func TestResolveExplicitPathWrongVersion(t *testing.T) {
	dir := t.TempDir()
	bin := fakeBinary(t, dir, "rustowl", "0.3.0")

	r := newTestResolver(t, bin)
	_, err := r.Resolve(context.Background())

	var explicitErr *ExplicitPathError
	require.ErrorAs(t, err, &explicitErr)
}

func TestResolveCachedInstall(t *testing.T) {
	r := newTestResolver(t, "")
	require.NoError(t, os.MkdirAll(r.InstallBinDir(), 0o755))
	fakeBinary(t, r.InstallBinDir(), "rustowl", "0.4.2")

	loc, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginCachedInstall, loc.Origin)
	assert.Equal(t, filepath.Join(r.InstallBinDir(), "rustowl"), loc.Path)
}

func TestResolveGlobalPath(t *testing.T) {
	dir := t.TempDir()
	bin := fakeBinary(t, dir, "rustowl", "v0.4.2")

	r := newTestResolver(t, "")
	r.LookPath = func(name string) (string, error) {
		if name == "rustowl" {
			return bin, nil
		}
		return "", errors.New("not found")
	}

	loc, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginGlobalPath, loc.Origin)
	assert.Equal(t, bin, loc.Path)
}

func TestResolveSkipsStaleCachedInstall(t *testing.T) {
	// An outdated cached binary must lose to a matching PATH binary.
	r := newTestResolver(t, "")
	require.NoError(t, os.MkdirAll(r.InstallBinDir(), 0o755))
	fakeBinary(t, r.InstallBinDir(), "rustowl", "0.3.9")

	dir := t.TempDir()
	good := fakeBinary(t, dir, "rustowl", "0.4.2")
	r.LookPath = func(name string) (string, error) {
		if name == "rustowl" {
			return good, nil
		}
		return "", errors.New("not found")
	}

	loc, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginGlobalPath, loc.Origin)
}

// fakeCargo builds a stub cargo whose `install --root <dir>` drops a valid
// rustowl script into <dir>/bin.
func fakeCargo(t *testing.T, dir string) string {
	t.Helper()
	body := `root=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--root" ]; then root="$a"; fi
  prev="$a"
done
[ -n "$root" ] || exit 1
mkdir -p "$root/bin"
printf '#!/bin/sh\nif [ "$1" = "--version" ]; then echo 0.4.2; fi\n' > "$root/bin/rustowl"
chmod +x "$root/bin/rustowl"
`
	return writeScript(t, dir, "cargo", body)
}

// fakeGit builds a stub git: clone creates the target tree, pull honors the
// pullExit code.
func fakeGit(t *testing.T, dir string, pullExit int) string {
	t.Helper()
	body := fmt.Sprintf(`case "$1" in
clone)
  for last in "$@"; do :; done
  mkdir -p "$last/.git"
  touch "$last/CLONED"
  ;;
pull)
  exit %d
  ;;
esac
`, pullExit)
	return writeScript(t, dir, "git", body)
}

func TestResolveBuildsFromSource(t *testing.T) {
	tools := t.TempDir()
	cargo := fakeCargo(t, tools)
	git := fakeGit(t, tools, 0)

	r := newTestResolver(t, "")
	r.Cargo = cargo
	r.Git = git
	r.LookPath = func(name string) (string, error) {
		if name == cargo {
			return cargo, nil
		}
		// rustowl and cargo-binstall are absent.
		return "", errors.New("not found")
	}

	loc, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginCachedInstall, loc.Origin)

	// The install dir now holds a symlink to the freshly built binary.
	link := filepath.Join(r.InstallBinDir(), "rustowl")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.buildRoot(), "bin", "rustowl"), target)
}

func TestEnsureCloneReclonesOnPullFailure(t *testing.T) {
	tools := t.TempDir()
	git := fakeGit(t, tools, 1)

	r := newTestResolver(t, "")
	r.Git = git

	// Seed a stale clone containing a leftover file.
	clone := r.cloneDir()
	require.NoError(t, os.MkdirAll(filepath.Join(clone, ".git"), 0o755))
	stale := filepath.Join(clone, "stale.rs")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	require.NoError(t, r.ensureClone(context.Background(), clone))

	assert.FileExists(t, filepath.Join(clone, "CLONED"), "expected a fresh clone")
	assert.NoFileExists(t, stale, "stale tree must be removed, not patched")
}

func TestEnsureClonePullSuccessKeepsTree(t *testing.T) {
	tools := t.TempDir()
	git := fakeGit(t, tools, 0)

	r := newTestResolver(t, "")
	r.Git = git

	clone := r.cloneDir()
	require.NoError(t, os.MkdirAll(filepath.Join(clone, ".git"), 0o755))
	keep := filepath.Join(clone, "keep.rs")
	require.NoError(t, os.WriteFile(keep, []byte("ok"), 0o644))

	require.NoError(t, r.ensureClone(context.Background(), clone))
	assert.FileExists(t, keep)
}

func TestInstallFailureIsActionable(t *testing.T) {
	tools := t.TempDir()
	failingCargo := writeScript(t, tools, "cargo", "echo 'no toolchain' >&2\nexit 1\n")
	git := fakeGit(t, tools, 0)

	r := newTestResolver(t, "")
	r.Cargo = failingCargo
	r.Git = git
	r.LookPath = func(name string) (string, error) {
		if name == failingCargo {
			return failingCargo, nil
		}
		return "", errors.New("not found")
	}

	_, err := r.Resolve(context.Background())
	require.Error(t, err)

	var installErr *InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Contains(t, installErr.Instructions(), "git clone "+RepoURL)
	assert.Contains(t, installErr.Instructions(), "cargo install")
}

func TestValidateRejectsGarbageOutput(t *testing.T) {
	dir := t.TempDir()
	bin := fakeBinary(t, dir, "rustowl", "error: unknown flag")

	r := newTestResolver(t, "")
	_, err := r.Validate(context.Background(), bin)
	assert.Error(t, err)
}

func TestForceUpdateHonorsExplicitPath(t *testing.T) {
	dir := t.TempDir()
	bin := fakeBinary(t, dir, "rustowl", "0.4.2")

	r := newTestResolver(t, bin)
	r.Git = "/nonexistent/git"
	r.Cargo = "/nonexistent/cargo"

	loc, err := r.ForceUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginConfigured, loc.Origin)
}
