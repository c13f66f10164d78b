// Package sync implements the sync engine (spec §4.6): the 7-phase
// `sync(opts)` operation that reconciles externally-merged/stale branches,
// plans a rebase for every branch whose parent has moved, executes that
// plan with crash-safe pause/continue/abort semantics, and then updates PR
// bases and pushes.
//
// Grounded on av's internal/sequencer.Sequencer (snapshot-parent-hash,
// rebase --onto, advance-cursor, persist shape) and on the original_source
// rung-core sync.rs reference implementation, which this package follows
// literally for the plan-time-snapshot semantics: a branch whose parent is
// rebased in this pass is not re-examined mid-pass, so a
// multi-level stack converges over at most one sync per level, exactly as
// rung-core's own `test_sync_plan_chain` asserts.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/rlog"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/statestore"
)

// ExternalMerge records a StackBranch whose PR was found merged on the
// forge during Phase 1.
type ExternalMerge struct {
	Branch     branchname.BranchName
	PR         uint64
	MergedInto branchname.BranchName
}

// Reparent records a child branch whose parent pointer was rewritten
// during reconciliation (merge detection or stale cleanup).
type Reparent struct {
	Name      branchname.BranchName
	OldParent branchname.BranchName
	NewParent branchname.BranchName
	PR        *uint64
}

// SyncAction is a single planned rebase (spec §4.6 Phase 3).
type SyncAction struct {
	Branch  branchname.BranchName
	OldBase gitrepo.CommitId
	NewBase gitrepo.CommitId
}

// Plan is an ordered list of rebases to perform.
type Plan []SyncAction

// Status is the outcome of a sync attempt.
type Status int

const (
	StatusAlreadySynced Status = iota
	StatusDone
	StatusPaused
)

// Result describes the outcome of Sync/ContinueSync.
type Result struct {
	Status Status

	// Done only, except BackupId, which Paused results carry too.
	BranchesRebased []branchname.BranchName
	BackupId        string

	// Paused only.
	AtBranch      branchname.BranchName
	ConflictFiles []string

	// Set by Sync, even on AlreadySynced; ContinueSync sets only Warnings.
	Reconciled []Reparent
	Plan       Plan
	Warnings   []string
	DryRun     bool
}

// Opts configures a sync attempt.
type Opts struct {
	NoPush  bool
	NoFetch bool
	DryRun  bool
}

// Engine drives the sync state machine over a RepositoryDriver, a
// ForgeClient, and a StateStore.
type Engine struct {
	Driver   gitrepo.Driver
	Forge    forge.Client
	Store    *statestore.Store
	Owner    string
	Repo     string
	Mainline branchname.BranchName
}

// New builds a sync Engine.
func New(driver gitrepo.Driver, forgeClient forge.Client, store *statestore.Store, owner, repo string, mainline branchname.BranchName) *Engine {
	return &Engine{Driver: driver, Forge: forgeClient, Store: store, Owner: owner, Repo: repo, Mainline: mainline}
}

// Sync runs a full sync attempt from Idle (spec §4.6 Phases 0-6).
func (e *Engine) Sync(ctx context.Context, opts Opts) (Result, error) {
	if e.Store.IsSyncInProgress() {
		return Result{}, rerrors.ErrSyncAlreadyInProgress
	}
	if err := e.Driver.RequireClean(ctx); err != nil {
		return Result{}, err
	}
	rebasing, err := e.Driver.IsRebasing(ctx)
	if err != nil {
		return Result{}, err
	}
	if rebasing {
		return Result{}, rerrors.ErrRebaseInProgress
	}

	st, err := e.Store.LoadStack()
	if err != nil {
		return Result{}, err
	}

	var warnings []string

	// Phase 0: base fetch.
	if !opts.NoFetch {
		if err := e.Driver.Fetch(ctx, e.Mainline); err != nil {
			warnings = append(warnings, fmt.Sprintf("fetch %s: %v", e.Mainline, err))
			rlog.Warn("branch", e.Mainline.String(), "fetch failed: "+err.Error())
		}
	}

	// Phase 1: merge detection & reconciliation.
	merges := e.detectMerges(ctx, st, &warnings)
	reparents := e.reconcileMerges(st, merges)

	// Phase 2: stale cleanup.
	staleReparents, err := e.cleanStale(ctx, st)
	if err != nil {
		return Result{}, err
	}
	reparents = append(reparents, staleReparents...)

	if len(reparents) > 0 && !opts.DryRun {
		if err := e.Store.SaveStack(st); err != nil {
			return Result{}, err
		}
	}

	// Phase 3: plan.
	plan, err := e.buildPlan(ctx, st)
	if err != nil {
		return Result{}, err
	}

	if opts.DryRun {
		return Result{Status: StatusAlreadySynced, Reconciled: reparents, Plan: plan, Warnings: warnings, DryRun: true}, nil
	}

	if len(plan) == 0 {
		return Result{Status: StatusAlreadySynced, Reconciled: reparents, Warnings: warnings}, nil
	}

	// Phase 4: execute.
	result, err := e.executePlan(ctx, plan)
	if err != nil {
		return Result{}, err
	}
	result.Reconciled = reparents
	result.Warnings = append(warnings, result.Warnings...)

	// Phase 5: update PR bases. Runs before a paused result returns, since
	// ContinueSync does not repeat it.
	e.updatePRBases(ctx, reparents, &result.Warnings)
	if result.Status == StatusPaused {
		return result, nil
	}

	// Phase 6: push.
	if !opts.NoPush {
		e.pushAll(ctx, st, &result.Warnings)
	}

	if err := e.Store.ClearSyncState(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// ContinueSync resumes a Paused sync (spec §4.6 "Continue").
func (e *Engine) ContinueSync(ctx context.Context, opts Opts) (Result, error) {
	ss, err := e.Store.LoadSyncState()
	if err != nil {
		return Result{}, err
	}

	if ss.Current != nil {
		cur := *ss.Current
		if err := e.Driver.RebaseContinue(ctx); err != nil {
			if conflict, ok := rerrors.As[rerrors.RebaseConflict](err); ok {
				return Result{Status: StatusPaused, AtBranch: cur, ConflictFiles: conflict.Files, BackupId: ss.BackupId}, nil
			}
			return Result{}, err
		}
		ss.Completed = append(ss.Completed, cur)
		ss.Current = nil
		if err := e.Store.SaveSyncState(ss); err != nil {
			return Result{}, err
		}
	}

	// Resume the plan loop, reading each remaining branch's current parent
	// tip at the time it is processed: parents may have moved during the
	// paused interval.
	st, err := e.Store.LoadStack()
	if err != nil {
		return Result{}, err
	}
	for len(ss.Remaining) > 0 {
		name := ss.Remaining[0]
		ss.Remaining = ss.Remaining[1:]
		ss.Current = &name
		if err := e.Store.SaveSyncState(ss); err != nil {
			return Result{}, err
		}

		b, ok := st.Find(name)
		if !ok {
			return Result{}, rerrors.NotInStack{Name: name.String()}
		}
		parentCommit, err := e.parentCommit(ctx, b)
		if err != nil {
			return Result{}, err
		}
		if err := e.Driver.Checkout(ctx, name); err != nil {
			return Result{}, err
		}
		if err := e.Driver.RebaseOnto(ctx, parentCommit); err != nil {
			if conflict, ok := rerrors.As[rerrors.RebaseConflict](err); ok {
				if err := e.Store.SaveSyncState(ss); err != nil {
					return Result{}, err
				}
				return Result{Status: StatusPaused, AtBranch: name, ConflictFiles: conflict.Files, BackupId: ss.BackupId}, nil
			}
			_ = e.Driver.RebaseAbort(ctx)
			_ = e.Store.ClearSyncState()
			return Result{}, err
		}
		ss.Completed = append(ss.Completed, name)
		ss.Current = nil
		if err := e.Store.SaveSyncState(ss); err != nil {
			return Result{}, err
		}
	}

	result := Result{Status: StatusDone, BranchesRebased: ss.Completed, BackupId: ss.BackupId}
	// Continuing a paused sync never redoes Phase 5 (PR-base updates were
	// already attempted, if applicable, on the run that paused); only the
	// push phase runs again.
	if !opts.NoPush {
		e.pushAll(ctx, st, &result.Warnings)
	}
	if err := e.Store.ClearSyncState(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// AbortSync restores every backed-up branch tip and clears the in-progress
// sync (spec §4.6 "Abort").
func (e *Engine) AbortSync(ctx context.Context) error {
	ss, err := e.Store.LoadSyncState()
	if err != nil {
		return err
	}
	rebasing, err := e.Driver.IsRebasing(ctx)
	if err != nil {
		return err
	}
	if rebasing {
		if err := e.Driver.RebaseAbort(ctx); err != nil {
			return err
		}
	}
	entries, err := e.Store.LoadBackup(ss.BackupId)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := e.Driver.ResetBranch(ctx, entry.Branch, entry.Commit); err != nil {
			return err
		}
	}
	if err := e.Store.ClearSyncState(); err != nil {
		return err
	}
	return e.Store.DeleteBackup(ss.BackupId)
}

// UndoSync restores every branch recorded in the latest backup and deletes
// it (spec §4.6 "Undo"). Requires no sync in progress.
func (e *Engine) UndoSync(ctx context.Context) error {
	if e.Store.IsSyncInProgress() {
		return rerrors.ErrSyncAlreadyInProgress
	}
	id, err := e.Store.LatestBackup()
	if err != nil {
		return err
	}
	entries, err := e.Store.LoadBackup(id)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := e.Driver.ResetBranch(ctx, entry.Branch, entry.Commit); err != nil {
			return err
		}
	}
	return e.Store.DeleteBackup(id)
}

func (e *Engine) detectMerges(ctx context.Context, st *stack.Stack, warnings *[]string) []ExternalMerge {
	var merges []ExternalMerge
	for _, b := range st.Branches() {
		if b.PR == nil {
			continue
		}
		pr, err := e.Forge.GetPR(ctx, e.Owner, e.Repo, *b.PR)
		if err != nil {
			msg := fmt.Sprintf("could not check PR #%d: %v", *b.PR, err)
			*warnings = append(*warnings, msg)
			rlog.Warn("pr", *b.PR, msg)
			continue
		}
		if pr.State != forge.PRStateMerged {
			continue
		}
		mergedInto := e.Mainline
		if name, err := branchname.New(pr.BaseBranch); err == nil {
			mergedInto = name
		}
		merges = append(merges, ExternalMerge{Branch: b.Name, PR: *b.PR, MergedInto: mergedInto})
	}
	return merges
}

// reconcileMerges re-parents children of every externally-merged branch
// onto that branch's former parent, then removes the merged branch (spec
// §4.6 Phase 1, steps 1-3).
func (e *Engine) reconcileMerges(st *stack.Stack, merges []ExternalMerge) []Reparent {
	var reparents []Reparent
	for _, m := range merges {
		b, ok := st.Find(m.Branch)
		if !ok {
			continue
		}
		reparents = append(reparents, e.reparentChildren(st, b)...)
		st.Remove(m.Branch)
	}
	return reparents
}

// cleanStale removes branches whose local ref no longer exists, re-
// parenting their children the same way reconcileMerges does (spec §4.6
// Phase 2).
func (e *Engine) cleanStale(ctx context.Context, st *stack.Stack) ([]Reparent, error) {
	var reparents []Reparent
	for _, b := range st.Branches() {
		exists, err := e.Driver.BranchExists(ctx, b.Name)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		reparents = append(reparents, e.reparentChildren(st, b)...)
		st.Remove(b.Name)
	}
	return reparents, nil
}

func (e *Engine) reparentChildren(st *stack.Stack, b stack.Branch) []Reparent {
	var reparents []Reparent
	newParentName := e.Mainline
	if b.Parent != nil {
		newParentName = *b.Parent
	}
	for _, child := range st.ChildrenOf(b.Name) {
		st.SetParent(child.Name, b.Parent)
		reparents = append(reparents, Reparent{
			Name:      child.Name,
			OldParent: b.Name,
			NewParent: newParentName,
			PR:        child.PR,
		})
	}
	return reparents
}

// buildPlan computes a SyncAction for every branch whose merge-base with
// its parent has fallen behind the parent's current tip (spec §4.6 Phase
// 3). Parent commits are read once, at plan time; a branch whose own
// parent is rebased later in the same pass is not re-examined until the
// next sync.
func (e *Engine) buildPlan(ctx context.Context, st *stack.Stack) (Plan, error) {
	var plan Plan
	for _, b := range st.Branches() {
		parentCommit, err := e.parentCommit(ctx, b)
		if err != nil {
			return nil, err
		}
		branchCommit, err := e.Driver.BranchCommit(ctx, b.Name)
		if err != nil {
			return nil, err
		}
		mb, err := e.Driver.MergeBase(ctx, branchCommit, parentCommit)
		if err != nil {
			return nil, err
		}
		if mb != parentCommit {
			plan = append(plan, SyncAction{Branch: b.Name, OldBase: mb, NewBase: parentCommit})
		}
	}
	return plan, nil
}

// parentCommit resolves b's effective parent commit: the remote-tracking
// tip of the mainline branch when b has no parent, or the local tip of its
// parent branch otherwise.
func (e *Engine) parentCommit(ctx context.Context, b stack.Branch) (gitrepo.CommitId, error) {
	if b.Parent == nil {
		return e.Driver.RemoteBranchCommit(ctx, e.Mainline)
	}
	exists, err := e.Driver.BranchExists(ctx, *b.Parent)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", rerrors.BranchNotFound{Name: b.Parent.String()}
	}
	return e.Driver.BranchCommit(ctx, *b.Parent)
}

// executePlan runs Phase 4: snapshot, then rebase each action in order,
// pausing on the first conflict.
func (e *Engine) executePlan(ctx context.Context, plan Plan) (Result, error) {
	entries := make([]statestore.BackupEntry, len(plan))
	for i, a := range plan {
		commit, err := e.Driver.BranchCommit(ctx, a.Branch)
		if err != nil {
			return Result{}, err
		}
		entries[i] = statestore.BackupEntry{Branch: a.Branch, Commit: commit}
	}
	backupId, err := e.Store.CreateBackup(time.Now(), entries)
	if err != nil {
		return Result{}, err
	}

	originalBranch, _ := e.Driver.CurrentBranch(ctx) // best-effort restore at the end

	remaining := make([]branchname.BranchName, len(plan))
	for i, a := range plan {
		remaining[i] = a.Branch
	}
	ss := statestore.SyncState{BackupId: backupId, Remaining: remaining}

	for _, action := range plan {
		cur := action.Branch
		ss.Remaining = ss.Remaining[1:]
		ss.Current = &cur
		if err := e.Store.SaveSyncState(ss); err != nil {
			return Result{}, err
		}
		if err := e.Driver.Checkout(ctx, action.Branch); err != nil {
			return Result{}, err
		}
		if err := e.Driver.RebaseOnto(ctx, action.NewBase); err != nil {
			if conflict, ok := rerrors.As[rerrors.RebaseConflict](err); ok {
				if err := e.Store.SaveSyncState(ss); err != nil {
					return Result{}, err
				}
				return Result{Status: StatusPaused, AtBranch: action.Branch, ConflictFiles: conflict.Files, BackupId: backupId, Plan: plan}, nil
			}
			_ = e.Driver.RebaseAbort(ctx)
			_ = e.Store.ClearSyncState()
			return Result{}, err
		}
		ss.Completed = append(ss.Completed, cur)
		ss.Current = nil
		if err := e.Store.SaveSyncState(ss); err != nil {
			return Result{}, err
		}
	}

	if !originalBranch.IsZero() {
		_ = e.Driver.Checkout(ctx, originalBranch) // best-effort
	}

	return Result{Status: StatusDone, BranchesRebased: ss.Completed, BackupId: backupId, Plan: plan}, nil
}

func (e *Engine) updatePRBases(ctx context.Context, reparents []Reparent, warnings *[]string) {
	for _, r := range reparents {
		if r.PR == nil {
			continue
		}
		base := r.NewParent.String()
		if _, err := e.Forge.UpdatePR(ctx, e.Owner, e.Repo, *r.PR, forge.UpdatePROptions{Base: &base}); err != nil {
			msg := fmt.Sprintf("could not update PR #%d base to %s: %v", *r.PR, base, err)
			*warnings = append(*warnings, msg)
			rlog.Warn("pr", *r.PR, msg)
		}
	}
}

func (e *Engine) pushAll(ctx context.Context, st *stack.Stack, warnings *[]string) {
	for _, b := range st.Branches() {
		exists, err := e.Driver.BranchExists(ctx, b.Name)
		if err != nil || !exists {
			continue
		}
		if err := e.Driver.Push(ctx, b.Name, true); err != nil {
			msg := fmt.Sprintf("could not push %s: %v", b.Name, err)
			*warnings = append(*warnings, msg)
			rlog.Warn("branch", b.Name.String(), msg)
		}
	}
}
