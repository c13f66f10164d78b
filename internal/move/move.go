// Package move implements the supplemented `move` (reparent) operation:
// changing a StackBranch's parent pointer to an arbitrary other branch in
// the stack, outside of what sync's automatic merge/stale reconciliation
// does.
//
// Grounded on av's internal/actions/reparent.go: validate a clean working
// tree, resolve the branch's current upstream boundary, then transplant with
// a rebase --onto so only the branch's own unique commits replay, the same
// onto-transplant idiom sync and merge-cleanup use.
package move

import (
	"context"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/statestore"
)

// Engine drives the move operation over a RepositoryDriver and a
// StateStore.
type Engine struct {
	Driver   gitrepo.Driver
	Store    *statestore.Store
	Mainline branchname.BranchName
}

// New builds a move Engine.
func New(driver gitrepo.Driver, store *statestore.Store, mainline branchname.BranchName) *Engine {
	return &Engine{Driver: driver, Store: store, Mainline: mainline}
}

// Move re-parents branch onto newParent (or onto mainline if newParent is
// the zero value), transplanting branch's unique commits in place.
func (e *Engine) Move(ctx context.Context, branch branchname.BranchName, newParent branchname.BranchName) error {
	if err := e.Driver.RequireClean(ctx); err != nil {
		return err
	}

	st, err := e.Store.LoadStack()
	if err != nil {
		return err
	}
	b, ok := st.Find(branch)
	if !ok {
		return rerrors.NotInStack{Name: branch.String()}
	}

	toMainline := newParent.IsZero()
	if !toMainline {
		if newParent.Equal(branch) {
			return rerrors.InvalidBranchName{Name: newParent.String(), Reason: "a branch cannot be its own parent"}
		}
		if wouldCycle(st, branch, newParent) {
			return rerrors.InvalidBranchName{Name: newParent.String(), Reason: "is a descendant of " + branch.String() + "; re-parenting onto it would create a cycle"}
		}
	}

	oldBase, err := e.currentParentCommit(ctx, b)
	if err != nil {
		return err
	}

	var newBase gitrepo.CommitId
	if toMainline {
		newBase, err = e.Driver.RemoteBranchCommit(ctx, e.Mainline)
	} else {
		newBase, err = e.Driver.BranchCommit(ctx, newParent)
	}
	if err != nil {
		return err
	}

	if err := e.Driver.Checkout(ctx, branch); err != nil {
		return err
	}
	if err := e.Driver.RebaseOntoFrom(ctx, newBase, oldBase); err != nil {
		return err
	}

	if toMainline {
		st.SetParent(branch, nil)
	} else {
		p := newParent
		st.SetParent(branch, &p)
	}
	return e.Store.SaveStack(st)
}

func (e *Engine) currentParentCommit(ctx context.Context, b stack.Branch) (gitrepo.CommitId, error) {
	if b.Parent == nil {
		return e.Driver.RemoteBranchCommit(ctx, e.Mainline)
	}
	return e.Driver.BranchCommit(ctx, *b.Parent)
}

// wouldCycle reports whether newParent is a descendant of branch, which
// would make branch its own ancestor after the re-parent. Move rejects
// newParent == branch separately, before calling it.
func wouldCycle(st *stack.Stack, branch, newParent branchname.BranchName) bool {
	for _, d := range st.Descendants(branch) {
		if d.Name.Equal(newParent) {
			return true
		}
	}
	return false
}
