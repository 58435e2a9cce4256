package toolchain

import (
	"fmt"

	"github.com/borrowscope/borrowscope/internal/version"
)

// ExplicitPathError reports that the user-configured server path failed
// validation. This is fatal: resolution never falls back past an explicit
// override.
type ExplicitPathError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ExplicitPathError) Error() string {
	return fmt.Sprintf("configured server path %s is not a usable rustowl binary: %v (fix or remove the server_path setting)", e.Path, e.Err)
}

// Unwrap returns the underlying validation error.
func (e *ExplicitPathError) Unwrap() error { return e.Err }

// InstallError reports that no binary could be resolved or installed.
// Instructions renders the manual recovery steps for the user.
type InstallError struct {
	Reason   error
	Required version.Version
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	return fmt.Sprintf("could not install rustowl %s: %v", e.Required, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *InstallError) Unwrap() error { return e.Reason }

// Instructions returns copy-pasteable manual installation steps.
func (e *InstallError) Instructions() string {
	return fmt.Sprintf(`Install rustowl manually and try again:

  git clone %s
  cd rustowl
  cargo install --path . --locked

or, with cargo-binstall:

  cargo binstall rustowl --version %s --no-confirm`, RepoURL, e.Required)
}
