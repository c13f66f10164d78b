// Package mergecleanup implements the merge-cleanup engine (spec §4.7):
// merging a submitted branch's PR on the forge, re-parenting its
// descendants onto its former parent, and transplanting each descendant's
// unique commits with a rebase --onto-style upstream boundary so a
// squash-merge commit never replays as a duplicate.
//
// Grounded on the original_source rung-cli merge command
// (crates/rung-cli/src/commands/merge.rs), which this package follows
// closely: collect descendants before merging, snapshot every old tip
// before any rebase, persist the stack reconciliation immediately after
// the forge merge succeeds (so the local model can never disagree with
// forge reality even if a later rebase fails), then fetch once and walk
// descendants in topological order updating each PR's base before
// transplanting and pushing it. The per-descendant "new base" decision
// deliberately consults the stack as it existed *before* reconciliation —
// a direct child's recorded parent is still the merged branch at that
// point, which is exactly what distinguishes it from a grandchild whose
// recorded parent is unaffected by the merge.
package mergecleanup

import (
	"context"
	"fmt"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/rlog"
	"github.com/rung-dev/rung/internal/statestore"
)

// Opts configures a merge-cleanup attempt.
type Opts struct {
	Method   forge.MergeMethod
	NoDelete bool
}

// Result summarizes a completed merge-cleanup.
type Result struct {
	PR            uint64
	MergedInto    branchname.BranchName
	Descendants   []branchname.BranchName
	RemoteDeleted bool
	Warnings      []string
}

// Engine drives merge-cleanup over a RepositoryDriver, a ForgeClient, and a
// StateStore.
type Engine struct {
	Driver gitrepo.Driver
	Forge  forge.Client
	Store  *statestore.Store
	Owner  string
	Repo   string
}

// New builds a merge-cleanup Engine.
func New(driver gitrepo.Driver, forgeClient forge.Client, store *statestore.Store, owner, repo string) *Engine {
	return &Engine{Driver: driver, Forge: forgeClient, Store: store, Owner: owner, Repo: repo}
}

// Merge runs the full merge-cleanup contract for branch (spec §4.7).
// mainline is used as the effective parent when branch is itself a
// top-level stack branch (no recorded parent).
func (e *Engine) Merge(ctx context.Context, branch branchname.BranchName, mainline branchname.BranchName, opts Opts) (Result, error) {
	// Step 1: validate.
	preStack, err := e.Store.LoadStack()
	if err != nil {
		return Result{}, err
	}
	b, ok := preStack.Find(branch)
	if !ok {
		return Result{}, rerrors.NotInStack{Name: branch.String()}
	}
	if b.PR == nil {
		return Result{}, rerrors.NoPRAssociated{Name: branch.String()}
	}
	prNumber := *b.PR

	// Step 2: record parent (or mainline).
	parent := mainline
	if b.Parent != nil {
		parent = *b.Parent
	}

	// Step 3: collect descendants in topological order, against the
	// pre-reconciliation stack.
	descendantBranches := preStack.Descendants(branch)
	descendants := make([]branchname.BranchName, len(descendantBranches))
	for i, d := range descendantBranches {
		descendants[i] = d.Name
	}

	// Step 4: capture old tips before any rebase.
	oldTips := map[string]gitrepo.CommitId{}
	tip, err := e.Driver.BranchCommit(ctx, branch)
	if err != nil {
		return Result{}, err
	}
	oldTips[branch.String()] = tip
	for _, name := range descendants {
		t, err := e.Driver.BranchCommit(ctx, name)
		if err != nil {
			return Result{}, err
		}
		oldTips[name.String()] = t
	}

	// Step 5: merge on the forge.
	if _, err := e.Forge.MergePR(ctx, e.Owner, e.Repo, prNumber, forge.MergeOptions{Method: opts.Method}); err != nil {
		return Result{}, err
	}

	// Step 6: immediately persist stack reconciliation, regardless of
	// whether subsequent rebases succeed: re-parent every direct child of
	// branch onto parent, then remove branch from the stack.
	postStack, err := e.Store.LoadStack()
	if err != nil {
		return Result{}, err
	}
	for _, child := range postStack.ChildrenOf(branch) {
		postStack.SetParent(child.Name, &parent)
	}
	postStack.Remove(branch)
	if err := e.Store.SaveStack(postStack); err != nil {
		return Result{}, err
	}

	result := Result{PR: prNumber, MergedInto: parent, Descendants: descendants}

	// Step 7: fetch parent to obtain the merge commit.
	if err := e.Driver.Fetch(ctx, parent); err != nil {
		return result, rerrors.FetchFailed{Details: err.Error()}
	}

	// Step 8: process each descendant in topological order.
	for _, name := range descendants {
		d, ok := preStack.Find(name)
		if !ok {
			return result, rerrors.NotInStack{Name: name.String()}
		}
		recordedParent := parent.String()
		if d.Parent != nil {
			recordedParent = d.Parent.String()
		}

		newBase := recordedParent
		if recordedParent == branch.String() {
			newBase = parent.String()
		}

		// 8a: update the PR base before any ref is deleted remotely.
		if d.PR != nil {
			base := newBase
			if _, err := e.Forge.UpdatePR(ctx, e.Owner, e.Repo, *d.PR, forge.UpdatePROptions{Base: &base}); err != nil {
				return result, fmt.Errorf("updating PR #%d base to %q: %w", *d.PR, newBase, err)
			}
		}

		// 8c: checkout.
		if err := e.Driver.Checkout(ctx, name); err != nil {
			return result, err
		}

		// 8d: resolve the new base commit — the freshly fetched remote tip
		// when landing on parent, the just-rebased local tip otherwise.
		var newBaseCommit gitrepo.CommitId
		if newBase == parent.String() {
			newBaseCommit, err = e.Driver.RemoteBranchCommit(ctx, parent)
		} else {
			newBaseBranch, berr := branchname.New(newBase)
			if berr != nil {
				return result, berr
			}
			newBaseCommit, err = e.Driver.BranchCommit(ctx, newBaseBranch)
		}
		if err != nil {
			return result, err
		}

		oldBaseCommit, ok := oldTips[recordedParent]
		if !ok {
			return result, fmt.Errorf("could not find pre-merge commit for %q", recordedParent)
		}

		// 8e: transplant this branch's unique commits.
		if err := e.Driver.RebaseOntoFrom(ctx, newBaseCommit, oldBaseCommit); err != nil {
			if conflict, ok := rerrors.As[rerrors.RebaseConflict](err); ok {
				return result, fmt.Errorf("rebase conflict in %s: %w; resolve manually, then `git rebase --continue && git push --force-with-lease`", name, conflict)
			}
			return result, err
		}

		// 8f: push.
		if err := e.Driver.Push(ctx, name, true); err != nil {
			return result, rerrors.PushFailed{Branch: name.String(), Details: err.Error()}
		}
	}

	// Step 9: delete the remote ref, unless suppressed.
	if !opts.NoDelete {
		if err := e.Forge.DeleteRef(ctx, e.Owner, e.Repo, branch.String()); err != nil {
			msg := fmt.Sprintf("could not delete remote branch %q: %v", branch, err)
			result.Warnings = append(result.Warnings, msg)
			rlog.Warn("branch", branch.String(), msg)
		} else {
			result.RemoteDeleted = true
		}
	}

	// Step 10: checkout parent locally and best-effort delete the local
	// branch.
	if err := e.Driver.Checkout(ctx, parent); err != nil {
		return result, err
	}
	if err := e.Driver.DeleteBranch(ctx, branch); err != nil {
		msg := fmt.Sprintf("could not delete local branch %q: %v", branch, err)
		result.Warnings = append(result.Warnings, msg)
		rlog.Warn("branch", branch.String(), msg)
	}

	return result, nil
}
