// Package submit implements the `submit` operation (spec §6.2): pushing
// every StackBranch, ensuring each has an open pull request on the forge
// with the correct base, and stamping a stack-overview comment on each PR.
//
// Grounded on av's internal/actions/pr.go (CreatePullRequest: look for an
// existing open PR before creating one, push first, then create/update) and
// on nvandessel-frond's internal/dag marker-comment convention for the
// stack-overview comment (find-or-create by a leading HTML comment marker),
// adapted here via internal/treerender.
package submit

import (
	"context"
	"fmt"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/rlog"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/statestore"
	"github.com/rung-dev/rung/internal/treerender"
)

// Opts configures a submit attempt.
type Opts struct {
	Draft bool
	// Force pushes with --force-with-lease instead of a plain push,
	// needed to re-push a branch whose history was rewritten (e.g. by
	// `rung sync`) since its last push.
	Force bool
	// Title, if set, overrides the PR title used when creating a new PR
	// for the current branch. Ignored for branches other than the one
	// submit was invoked from, and ignored entirely if the PR already
	// exists.
	Title string
}

// Submission summarizes one branch's outcome.
type Submission struct {
	Branch  branchname.BranchName
	PR      uint64
	Created bool
}

// Result summarizes a completed submit.
type Result struct {
	Submissions []Submission
	Warnings    []string
}

// Engine drives submit over a RepositoryDriver, a ForgeClient, and a
// StateStore.
type Engine struct {
	Driver   gitrepo.Driver
	Forge    forge.Client
	Store    *statestore.Store
	Owner    string
	Repo     string
	Mainline branchname.BranchName
}

// New builds a submit Engine.
func New(driver gitrepo.Driver, forgeClient forge.Client, store *statestore.Store, owner, repo string, mainline branchname.BranchName) *Engine {
	return &Engine{Driver: driver, Forge: forgeClient, Store: store, Owner: owner, Repo: repo, Mainline: mainline}
}

// Submit pushes and ensures a PR exists for from and every StackBranch
// transitively reachable from it (its ancestors are assumed already
// submitted and are skipped; only from and its descendants are processed),
// per spec §6.2. Pass the zero BranchName to submit the entire stack.
func (e *Engine) Submit(ctx context.Context, from branchname.BranchName, opts Opts) (Result, error) {
	st, err := e.Store.LoadStack()
	if err != nil {
		return Result{}, err
	}

	var targets []stack.Branch
	if from.IsZero() {
		targets = st.Branches()
	} else {
		b, ok := st.Find(from)
		if !ok {
			return Result{}, rerrors.NotInStack{Name: from.String()}
		}
		targets = append(targets, b)
		targets = append(targets, st.Descendants(from)...)
	}

	var result Result
	for _, b := range targets {
		base := e.Mainline.String()
		if b.Parent != nil {
			base = b.Parent.String()
		}

		if err := e.Driver.Push(ctx, b.Name, opts.Force); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("push %s: %v", b.Name, err))
			rlog.Warn("branch", b.Name.String(), "push failed: "+err.Error())
			continue
		}

		branchOpts := opts
		if !b.Name.Equal(from) {
			branchOpts.Title = ""
		}
		pr, created, err := e.ensurePR(ctx, b, base, branchOpts)
		if err != nil {
			return result, err
		}
		st.SetPR(b.Name, &pr.Number)
		result.Submissions = append(result.Submissions, Submission{Branch: b.Name, PR: pr.Number, Created: created})

		if err := e.upsertStackComment(ctx, st, b, pr.Number); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("updating stack comment on #%d: %v", pr.Number, err))
			rlog.Warn("pr", pr.Number, "stack comment update failed: "+err.Error())
		}
	}

	if err := e.Store.SaveStack(st); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) ensurePR(ctx context.Context, b stack.Branch, base string, opts Opts) (forge.PR, bool, error) {
	if b.PR != nil {
		pr, err := e.Forge.GetPR(ctx, e.Owner, e.Repo, *b.PR)
		if err == nil && pr.State == forge.PRStateOpen {
			if pr.BaseBranch != base {
				updated, err := e.Forge.UpdatePR(ctx, e.Owner, e.Repo, pr.Number, forge.UpdatePROptions{Base: &base})
				if err != nil {
					return forge.PR{}, false, err
				}
				return updated, false, nil
			}
			return pr, false, nil
		}
	}

	existing, err := e.Forge.FindPRForBranch(ctx, e.Owner, e.Repo, b.Name.String())
	if err != nil {
		return forge.PR{}, false, err
	}
	if existing != nil {
		if existing.BaseBranch != base {
			updated, err := e.Forge.UpdatePR(ctx, e.Owner, e.Repo, existing.Number, forge.UpdatePROptions{Base: &base})
			if err != nil {
				return forge.PR{}, false, err
			}
			return updated, false, nil
		}
		return *existing, false, nil
	}

	title := opts.Title
	if title == "" {
		title = b.Name.String()
	}
	pr, err := e.Forge.CreatePR(ctx, e.Owner, e.Repo, forge.CreatePROptions{
		Title:      title,
		HeadBranch: b.Name.String(),
		BaseBranch: base,
		Draft:      opts.Draft,
	})
	if err != nil {
		return forge.PR{}, false, err
	}
	return pr, true, nil
}

func (e *Engine) upsertStackComment(ctx context.Context, st *stack.Stack, b stack.Branch, prNumber uint64) error {
	annotations := map[string]treerender.Annotation{}
	for _, n := range st.Branches() {
		ann := treerender.Annotation{Current: n.Name.Equal(b.Name)}
		if n.PR != nil {
			ann.PR = n.PR
		}
		annotations[n.Name.String()] = ann
	}
	body := treerender.StackComment(st, e.Mainline, annotations)

	comments, err := e.Forge.ListPRComments(ctx, e.Owner, e.Repo, prNumber)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if treerender.HasMarker(c.Body) {
			_, err := e.Forge.UpdatePRComment(ctx, e.Owner, e.Repo, c.ID, body)
			return err
		}
	}
	_, err = e.Forge.CreatePRComment(ctx, e.Owner, e.Repo, prNumber, body)
	return err
}
