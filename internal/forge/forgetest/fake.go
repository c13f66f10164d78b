// Package forgetest provides an in-memory forge.Client double, grounded on
// stackit's internal/demo.GitHubClient (a map-backed stand-in for the real
// API), used by the sync and merge-cleanup engine tests.
package forgetest

import (
	"context"
	"net/http"
	"sync"

	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/rerrors"
)

func errNotFound() error {
	return rerrors.ForgeApiError{Status: http.StatusNotFound, Message: "pull request not found"}
}

// Fake is a forge.Client backed entirely by in-memory maps. Errors come only
// from Fail and from lookups of unknown PR numbers.
type Fake struct {
	mu sync.Mutex

	nextNumber    uint64
	byNumber      map[uint64]*forge.PR
	byBranch      map[string]uint64
	comments      map[uint64][]forge.Comment
	nextCommentID int64

	// Fail, if set, is returned by GetPR, UpdatePR and MergePR for the
	// given PR number; the comment calls do not consult it.
	Fail map[uint64]error

	// MergeResults, if set, overrides the default merge outcome for a PR.
	MergeResults map[uint64]forge.MergeResult

	DeletedRefs []string
}

func New() *Fake {
	return &Fake{
		nextNumber: 1,
		byNumber:   map[uint64]*forge.PR{},
		byBranch:   map[string]uint64{},
		comments:   map[uint64][]forge.Comment{},
		Fail:       map[uint64]error{},
	}
}

// Seed registers a PR directly, bypassing CreatePR, for test setup.
func (f *Fake) Seed(pr forge.PR) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := pr
	f.byNumber[pr.Number] = &cp
	f.byBranch[pr.HeadBranch] = pr.Number
	if pr.Number >= f.nextNumber {
		f.nextNumber = pr.Number + 1
	}
}

func (f *Fake) GetPR(_ context.Context, _, _ string, number uint64) (forge.PR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[number]; err != nil {
		return forge.PR{}, err
	}
	pr, ok := f.byNumber[number]
	if !ok {
		return forge.PR{}, errNotFound()
	}
	return *pr, nil
}

func (f *Fake) FindPRForBranch(_ context.Context, _, _, headBranch string) (*forge.PR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	number, ok := f.byBranch[headBranch]
	if !ok {
		return nil, nil
	}
	pr := f.byNumber[number]
	if pr.State != forge.PRStateOpen {
		return nil, nil
	}
	cp := *pr
	return &cp, nil
}

func (f *Fake) CreatePR(_ context.Context, _, _ string, opts forge.CreatePROptions) (forge.PR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	number := f.nextNumber
	f.nextNumber++
	pr := forge.PR{
		Number:     number,
		Title:      opts.Title,
		Body:       opts.Body,
		State:      forge.PRStateOpen,
		Draft:      opts.Draft,
		HeadBranch: opts.HeadBranch,
		BaseBranch: opts.BaseBranch,
	}
	f.byNumber[number] = &pr
	f.byBranch[opts.HeadBranch] = number
	return pr, nil
}

func (f *Fake) UpdatePR(_ context.Context, _, _ string, number uint64, opts forge.UpdatePROptions) (forge.PR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[number]; err != nil {
		return forge.PR{}, err
	}
	pr, ok := f.byNumber[number]
	if !ok {
		return forge.PR{}, errNotFound()
	}
	if opts.Title != nil {
		pr.Title = *opts.Title
	}
	if opts.Body != nil {
		pr.Body = *opts.Body
	}
	if opts.Base != nil {
		pr.BaseBranch = *opts.Base
	}
	return *pr, nil
}

func (f *Fake) MergePR(_ context.Context, _, _ string, number uint64, _ forge.MergeOptions) (forge.MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[number]; err != nil {
		return forge.MergeResult{}, err
	}
	pr, ok := f.byNumber[number]
	if !ok {
		return forge.MergeResult{}, errNotFound()
	}
	pr.State = forge.PRStateMerged
	if r, ok := f.MergeResults[number]; ok {
		return r, nil
	}
	return forge.MergeResult{SHA: "deadbeef", Merged: true, Message: "merged"}, nil
}

func (f *Fake) DeleteRef(_ context.Context, _, _, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedRefs = append(f.DeletedRefs, branch)
	return nil
}

func (f *Fake) ListPRComments(_ context.Context, _, _ string, number uint64) ([]forge.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forge.Comment(nil), f.comments[number]...), nil
}

func (f *Fake) CreatePRComment(_ context.Context, _, _ string, number uint64, body string) (forge.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCommentID++
	c := forge.Comment{ID: f.nextCommentID, Body: body}
	f.comments[number] = append(f.comments[number], c)
	return c, nil
}

func (f *Fake) UpdatePRComment(_ context.Context, _, _ string, commentID int64, body string) (forge.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for number, cs := range f.comments {
		for i, c := range cs {
			if c.ID == commentID {
				cs[i].Body = body
				return cs[i], nil
			}
		}
		_ = number
	}
	return forge.Comment{}, errNotFound()
}
