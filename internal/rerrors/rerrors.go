// Package rerrors defines the structured error taxonomy the core raises.
//
// Every error kind here is a concrete type so callers can branch on it with
// As instead of matching on error message substrings.
package rerrors

import (
	"fmt"

	"emperror.dev/errors"
)

// As is a generics wrapper around errors.As that returns the concrete error
// type if err is (or wraps) a T.
func As[T error](err error) (T, bool) {
	var concrete T
	if err == nil {
		return concrete, false
	}
	if errors.As(err, &concrete) {
		return concrete, true
	}
	return concrete, false
}

var (
	ErrNotInitialized      = errors.Sentinel("rung has not been initialized in this repository (run `rung init`)")
	ErrNotInRepository     = errors.Sentinel("not inside a git repository")
	ErrBareRepository      = errors.Sentinel("this operation is not supported in a bare repository")
	ErrDetachedHead        = errors.Sentinel("HEAD is detached")
	ErrRebaseInProgress    = errors.Sentinel("a rebase is already in progress outside of rung")
	ErrSyncAlreadyInProgress = errors.Sentinel("a sync is already in progress: use --continue or --abort")
	ErrNoSyncInProgress    = errors.Sentinel("no sync is in progress")
	ErrNoBackup            = errors.Sentinel("no backup is available to restore from")
	ErrRemoteNotFound      = errors.Sentinel("this repository doesn't have a remote named origin")
)

// InvalidBranchName is returned when a candidate branch name fails
// validation. Reason is a human-readable, precise explanation.
type InvalidBranchName struct {
	Name   string
	Reason string
}

func (e InvalidBranchName) Error() string {
	return fmt.Sprintf("invalid branch name %q: %s", e.Name, e.Reason)
}

// DirtyWorkingDirectory is returned when an operation requires a clean
// working copy but tracked files are modified or staged.
type DirtyWorkingDirectory struct {
	Files []string
}

func (e DirtyWorkingDirectory) Error() string {
	return fmt.Sprintf("working directory has %d modified/staged file(s); commit or stash them first", len(e.Files))
}

// BranchNotFound is returned when a named branch does not exist in the
// underlying repository.
type BranchNotFound struct {
	Name string
}

func (e BranchNotFound) Error() string {
	return fmt.Sprintf("branch %q does not exist", e.Name)
}

// NotInStack is returned when a branch is not tracked in the Stack.
type NotInStack struct {
	Name string
}

func (e NotInStack) Error() string {
	return fmt.Sprintf("branch %q is not part of the stack", e.Name)
}

// NoPRAssociated is returned when merge-cleanup is invoked on a stack
// branch that has never been submitted.
type NoPRAssociated struct {
	Name string
}

func (e NoPRAssociated) Error() string {
	return fmt.Sprintf("branch %q has no associated pull request (run `rung submit` first)", e.Name)
}

// RebaseConflict is an EXPECTED outcome of a rebase attempt, not a failure:
// sync surfaces it to the caller as a Paused result, while merge-cleanup
// returns it wrapped with manual-resolution instructions.
type RebaseConflict struct {
	Files []string
}

func (e RebaseConflict) Error() string {
	return fmt.Sprintf("rebase conflict in %d file(s): %v", len(e.Files), e.Files)
}

// RebaseFailed wraps an unexpected (non-conflict) rebase failure.
type RebaseFailed struct {
	Details string
}

func (e RebaseFailed) Error() string { return fmt.Sprintf("rebase failed: %s", e.Details) }

// PushFailed wraps a push failure.
type PushFailed struct {
	Branch  string
	Details string
}

func (e PushFailed) Error() string {
	return fmt.Sprintf("failed to push %q: %s", e.Branch, e.Details)
}

// FetchFailed wraps a fetch failure.
type FetchFailed struct {
	Details string
}

func (e FetchFailed) Error() string { return fmt.Sprintf("fetch failed: %s", e.Details) }

// RemoteNotFound indicates the named remote does not exist.
type RemoteNotFound struct {
	Name string
}

func (e RemoteNotFound) Error() string { return fmt.Sprintf("remote %q not found", e.Name) }

// InvalidRemoteUrl indicates the origin remote URL could not be parsed into
// a forge owner/repo pair.
type InvalidRemoteUrl struct {
	URL string
}

func (e InvalidRemoteUrl) Error() string { return fmt.Sprintf("cannot parse remote URL: %q", e.URL) }

// Forge error kinds (§7).
type (
	ForgeAuthenticationFailed struct{}
	ForgeRateLimited          struct{ ResetUnix int64 }
	ForgeApiError             struct {
		Status  int
		Message string
	}
	ForgeTransport struct{ Details string }
)

func (e ForgeAuthenticationFailed) Error() string {
	return "GitHub authentication failed (check your token)"
}

func (e ForgeRateLimited) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (resets at unix %d)", e.ResetUnix)
}

func (e ForgeApiError) Error() string {
	return fmt.Sprintf("GitHub API error (%d): %s", e.Status, e.Message)
}

func (e ForgeTransport) Error() string { return fmt.Sprintf("GitHub transport error: %s", e.Details) }

// State error kinds (§7): durable-storage failures are always fatal.
type (
	StateIo struct {
		Path string
		Err  error
	}
	StateSerialization struct {
		Path string
		Err  error
	}
	StateCorrupted struct {
		Path   string
		Reason string
	}
)

func (e StateIo) Error() string { return fmt.Sprintf("state I/O error at %q: %v", e.Path, e.Err) }
func (e StateIo) Unwrap() error { return e.Err }

func (e StateSerialization) Error() string {
	return fmt.Sprintf("state serialization error at %q: %v", e.Path, e.Err)
}
func (e StateSerialization) Unwrap() error { return e.Err }

func (e StateCorrupted) Error() string {
	return fmt.Sprintf("corrupted state file at %q: %s", e.Path, e.Reason)
}
