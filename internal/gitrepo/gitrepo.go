// Package gitrepo defines the RepositoryDriver capability set the sync and
// merge-cleanup engines consume (spec §4.4), plus a real implementation that
// shells out to the git binary for mutating operations and uses go-git for
// read-only ref/commit lookups.
//
// Grounded on av's internal/git package: Repo.Git/Run for the subprocess
// wrapper, status.go's porcelain v2 parser for IsClean, and rebase.go's
// RebaseOpts shape for the onto-transplant rebase calls.
package gitrepo

import (
	"context"
	"time"

	"github.com/rung-dev/rung/internal/branchname"
)

// CommitId is a git object id. Any valid git revision string (a commit
// hash, but also branch/tag names resolvable by the underlying VCS) can be
// used wherever a CommitId is accepted by Driver methods that take one as
// an "upstream"/"onto" argument, since the git binary itself is revision-
// agnostic about the two.
type CommitId string

// Driver is the RepositoryDriver capability set (spec §4.4). The sync and
// merge-cleanup engines depend only on this interface, never on a concrete
// git implementation, so they can be tested against a fake.
type Driver interface {
	// CurrentBranch returns the checked-out branch, or rerrors.ErrDetachedHead
	// if HEAD is detached.
	CurrentBranch(ctx context.Context) (branchname.BranchName, error)
	BranchExists(ctx context.Context, name branchname.BranchName) (bool, error)
	// CreateBranch creates name pointing at the current HEAD commit, without
	// checking it out.
	CreateBranch(ctx context.Context, name branchname.BranchName) error
	Checkout(ctx context.Context, name branchname.BranchName) error
	DeleteBranch(ctx context.Context, name branchname.BranchName) error

	// BranchCommit returns the local tip of name.
	BranchCommit(ctx context.Context, name branchname.BranchName) (CommitId, error)
	// RemoteBranchCommit returns the tip of name on the canonical remote.
	RemoteBranchCommit(ctx context.Context, name branchname.BranchName) (CommitId, error)
	MergeBase(ctx context.Context, a, b CommitId) (CommitId, error)
	CommitsBetween(ctx context.Context, from, to CommitId) ([]CommitId, error)
	FindCommit(ctx context.Context, id CommitId) (bool, error)
	// CommitTime returns the committer timestamp of id, for displaying branch
	// recency in tree/status output.
	CommitTime(ctx context.Context, id CommitId) (time.Time, error)

	// IsClean reports whether no tracked file is modified or staged;
	// untracked files do not count as dirty.
	IsClean(ctx context.Context) (bool, error)
	// RequireClean returns rerrors.DirtyWorkingDirectory if IsClean is false.
	RequireClean(ctx context.Context) error
	IsRebasing(ctx context.Context) (bool, error)
	// StageAndCommit stages every change, untracked files included
	// (`git add -A`), and commits
	// it with message. A no-op, successful call if there is nothing to
	// commit.
	StageAndCommit(ctx context.Context, message string) error

	// ResetBranch force-moves name to commit. If name is checked out, the
	// working copy is updated too.
	ResetBranch(ctx context.Context, name branchname.BranchName, commit CommitId) error

	// RebaseOnto replays the current branch onto target. Returns
	// rerrors.RebaseConflict on conflict.
	RebaseOnto(ctx context.Context, target CommitId) error
	// RebaseOntoFrom transplants commits in (oldBase, HEAD] onto newBase.
	RebaseOntoFrom(ctx context.Context, newBase, oldBase CommitId) error
	RebaseContinue(ctx context.Context) error
	RebaseAbort(ctx context.Context) error

	Push(ctx context.Context, name branchname.BranchName, forceWithLease bool) error
	Fetch(ctx context.Context, name branchname.BranchName) error

	OriginURL(ctx context.Context) (string, error)
	// ParseForgeRemote parses a canonical SSH or HTTPS forge remote URL into
	// an (owner, repo) pair.
	ParseForgeRemote(url string) (owner, repo string, err error)
}
