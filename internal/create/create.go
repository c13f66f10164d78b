// Package create implements the `create` operation (spec §6.2): appending a
// new StackBranch on top of the current branch, checking it out, and
// optionally staging and committing the working tree in one step.
//
// Grounded on av's `av branch` command (cmd/av/branch.go): derive a name
// from either an explicit name or a commit-message-shaped slug, create and
// check out the branch from the current HEAD, parent it on the branch that
// was checked out beforehand.
package create

import (
	"context"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/statestore"
)

// Opts configures a create attempt. Exactly one of Name/Message should
// carry the caller's input; Name takes precedence if both are set.
type Opts struct {
	Name    string
	Message string
	// Commit, if set, stages all changes (untracked files included) and commits them with
	// Message (or a generic message if Message is empty) after creating
	// the branch.
	Commit bool
}

// Engine drives create over a RepositoryDriver and a StateStore.
type Engine struct {
	Driver gitrepo.Driver
	Store  *statestore.Store
}

// New builds a create Engine.
func New(driver gitrepo.Driver, store *statestore.Store) *Engine {
	return &Engine{Driver: driver, Store: store}
}

// Create appends a new StackBranch, checks it out, and returns its name.
// The new branch is parented on the current branch when that branch is in
// the stack; otherwise its parent is nil (mainline).
func (e *Engine) Create(ctx context.Context, opts Opts) (branchname.BranchName, error) {
	if err := e.Driver.RequireClean(ctx); err != nil {
		return branchname.BranchName{}, err
	}

	var name branchname.BranchName
	var err error
	switch {
	case opts.Name != "":
		name, err = branchname.New(opts.Name)
	case opts.Message != "":
		name, err = branchname.FromMessage(opts.Message)
	default:
		return branchname.BranchName{}, rerrors.InvalidBranchName{Reason: "create requires a name or a message to derive one from"}
	}
	if err != nil {
		return branchname.BranchName{}, err
	}

	if exists, err := e.Driver.BranchExists(ctx, name); err != nil {
		return branchname.BranchName{}, err
	} else if exists {
		return branchname.BranchName{}, rerrors.InvalidBranchName{Name: name.String(), Reason: "a branch with this name already exists"}
	}

	parent, err := e.Driver.CurrentBranch(ctx)
	if err != nil {
		return branchname.BranchName{}, err
	}

	st, err := e.Store.LoadStack()
	if err != nil {
		return branchname.BranchName{}, err
	}

	var parentPtr *branchname.BranchName
	if _, inStack := st.Find(parent); inStack {
		p := parent
		parentPtr = &p
	}

	if err := e.Driver.CreateBranch(ctx, name); err != nil {
		return branchname.BranchName{}, err
	}
	if err := e.Driver.Checkout(ctx, name); err != nil {
		return branchname.BranchName{}, err
	}

	if opts.Commit {
		if err := e.Driver.StageAndCommit(ctx, opts.Message); err != nil {
			return branchname.BranchName{}, err
		}
	}

	if err := st.AddBranch(stack.Branch{Name: name, Parent: parentPtr}); err != nil {
		return branchname.BranchName{}, err
	}
	if err := e.Store.SaveStack(st); err != nil {
		return branchname.BranchName{}, err
	}

	return name, nil
}
