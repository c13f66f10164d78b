// Package doctor implements read-only diagnostics over the Stack, the
// RepositoryDriver, and the ForgeClient (spec §9 "Cyclic reference
// prevention" and the §9 Open Question's option (b): surfacing
// local/forge base-branch divergence rather than rolling back the stack
// model when a merge-cleanup PR-base update fails).
//
// Grounded on original_source's rung-cli doctor command
// (crates/rung-cli/src/commands/doctor.rs): the same four-phase shape
// (git state, stack integrity, sync state, GitHub connectivity) and the
// same severity/suggestion issue shape, adapted from its print-as-you-go
// CLI style into a pure data-returning Run so the CLI layer owns
// rendering.
package doctor

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/statestore"
)

// Severity classifies an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	// SeverityInfo is a non-actionable observation (e.g. a recent sync
	// backup exists). It never counts toward Errors/Warnings/Healthy.
	SeverityInfo Severity = "info"
)

// Issue is a single diagnostic finding.
type Issue struct {
	Severity   Severity
	Message    string
	Suggestion string
}

// Report is the full result of a doctor run.
type Report struct {
	Healthy  bool
	Errors   int
	Warnings int
	Issues   []Issue
}

func (r *Report) push(i Issue) {
	r.Issues = append(r.Issues, i)
	switch i.Severity {
	case SeverityError:
		r.Errors++
	case SeverityWarning:
		r.Warnings++
	}
}

func errorf(suggestion, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...), Suggestion: suggestion}
}

func warnf(suggestion, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Suggestion: suggestion}
}

func infof(suggestion, format string, args ...any) Issue {
	return Issue{Severity: SeverityInfo, Message: fmt.Sprintf(format, args...), Suggestion: suggestion}
}

// Engine runs diagnostics over a RepositoryDriver, a ForgeClient, and a
// StateStore.
type Engine struct {
	Driver   gitrepo.Driver
	Forge    forge.Client
	Store    *statestore.Store
	Owner    string
	Repo     string
	Mainline branchname.BranchName
}

// New builds a doctor Engine.
func New(driver gitrepo.Driver, forgeClient forge.Client, store *statestore.Store, owner, repo string, mainline branchname.BranchName) *Engine {
	return &Engine{Driver: driver, Forge: forgeClient, Store: store, Owner: owner, Repo: repo, Mainline: mainline}
}

// Run executes every check and returns the aggregate Report. It never
// returns an error itself: every failure mode it can encounter becomes an
// Issue instead, since doctor's entire purpose is to surface problems
// rather than abort on the first one.
func (e *Engine) Run(ctx context.Context) Report {
	var r Report

	if !e.Store.IsInitialized() {
		r.push(errorf("run `rung init` to initialize", "rung has not been initialized in this repository"))
		r.Healthy = r.Errors == 0 && r.Warnings == 0
		return r
	}

	e.checkGitState(ctx, &r)

	st, err := e.Store.LoadStack()
	if err != nil {
		r.push(errorf("", "could not load stack: %v", err))
		r.Healthy = r.Errors == 0 && r.Warnings == 0
		return r
	}

	e.checkStackIntegrity(ctx, st, &r)
	e.checkSyncState(ctx, st, &r)
	e.checkForge(ctx, st, &r)

	r.Healthy = r.Errors == 0 && r.Warnings == 0
	return r
}

func (e *Engine) checkGitState(ctx context.Context, r *Report) {
	clean, err := e.Driver.IsClean(ctx)
	if err == nil && !clean {
		r.push(warnf("commit or stash changes before running rung commands", "working directory has uncommitted changes"))
	}

	if _, err := e.Driver.CurrentBranch(ctx); err != nil {
		r.push(errorf("checkout a branch", "HEAD is detached (not on a branch)"))
	}

	if rebasing, err := e.Driver.IsRebasing(ctx); err == nil && rebasing {
		r.push(errorf("complete or abort the rebase before running rung commands", "a rebase is in progress"))
	}
}

func (e *Engine) checkStackIntegrity(ctx context.Context, st *stack.Stack, r *Report) {
	for _, b := range st.Branches() {
		exists, err := e.Driver.BranchExists(ctx, b.Name)
		if err == nil && !exists {
			r.push(warnf("run `rung sync` to clean up stale branches", "branch %q is in the stack but not in git", b.Name))
			continue
		}
		if b.Parent == nil {
			continue
		}
		if _, inStack := st.Find(*b.Parent); inStack {
			continue
		}
		parentExists, err := e.Driver.BranchExists(ctx, *b.Parent)
		if err == nil && !parentExists {
			r.push(errorf("run `rung sync` to re-parent orphaned branches", "branch %q has missing parent %q", b.Name, *b.Parent))
		}
	}

	if st.HasCycle() {
		r.push(errorf("", "the stack contains a circular parent dependency"))
	}
}

func (e *Engine) checkSyncState(ctx context.Context, st *stack.Stack, r *Report) {
	if e.Store.IsSyncInProgress() {
		r.push(warnf("run `rung sync --continue` or `rung sync --abort`", "a sync is already in progress"))
	}

	if id, err := e.Store.LatestBackup(); err == nil {
		if createdAt, err := statestore.BackupTime(id); err == nil {
			r.push(infof("", "a sync backup from %s is available (run `rung undo` to restore it)", humanize.Time(createdAt)))
		}
	}

	needsSync := 0
	for _, b := range st.Branches() {
		exists, err := e.Driver.BranchExists(ctx, b.Name)
		if err != nil || !exists {
			continue
		}
		parentCommit, err := e.parentCommit(ctx, b)
		if err != nil {
			continue
		}
		branchCommit, err := e.Driver.BranchCommit(ctx, b.Name)
		if err != nil {
			continue
		}
		mb, err := e.Driver.MergeBase(ctx, branchCommit, parentCommit)
		if err != nil {
			continue
		}
		if mb != parentCommit {
			needsSync++
		}
	}
	if needsSync > 0 {
		r.push(warnf("run `rung sync` to rebase", "%d branch(es) are behind their parent", needsSync))
	}
}

func (e *Engine) parentCommit(ctx context.Context, b stack.Branch) (gitrepo.CommitId, error) {
	if b.Parent == nil {
		return e.Driver.RemoteBranchCommit(ctx, e.Mainline)
	}
	return e.Driver.BranchCommit(ctx, *b.Parent)
}

func (e *Engine) checkForge(ctx context.Context, st *stack.Stack, r *Report) {
	for _, b := range st.Branches() {
		if b.PR == nil {
			continue
		}
		pr, err := e.Forge.GetPR(ctx, e.Owner, e.Repo, *b.PR)
		if err != nil {
			r.push(warnf("", "could not fetch PR #%d for %q", *b.PR, b.Name))
			continue
		}
		if pr.State != forge.PRStateOpen {
			r.push(warnf("run `rung sync` to clean up or merge the branch", "PR #%d for %q is %s (not open)", *b.PR, b.Name, pr.State))
			continue
		}

		// Surface local/forge base-branch divergence instead of rolling back
		// the stack model (spec §9 Open Question, option (b)): the stack's
		// recorded parent and the PR's actual base on the forge should agree.
		expectedBase := e.Mainline.String()
		if b.Parent != nil {
			expectedBase = b.Parent.String()
		}
		if pr.BaseBranch != expectedBase {
			r.push(warnf("run `rung sync` to realign the PR base", "PR #%d for %q has base %q but the stack records %q", *b.PR, b.Name, pr.BaseBranch, expectedBase))
		}
	}
}
