// Package forge defines the ForgeClient capability set the sync and
// merge-cleanup engines consume (spec §4.5), plus a GitHub implementation.
//
// The wrapping style (logged calls, Ptr/nullable helpers) is grounded on
// av's internal/gh/client.go; the REST shape itself (PR/MergeResult fields
// mapping onto go-github's PullRequest/PullRequestMergeResult rather than a
// GraphQL query) is grounded on stackit's internal/github/pr_operations.go.
package forge

import "context"

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	PRStateOpen   PRState = "Open"
	PRStateClosed PRState = "Closed"
	PRStateMerged PRState = "Merged"
)

// PR is the subset of pull-request fields the core needs (spec §4.5).
type PR struct {
	Number     uint64
	Title      string
	Body       string
	State      PRState
	Draft      bool
	HeadBranch string
	BaseBranch string
	HTMLURL    string
}

// MergeMethod selects how a PR is merged on the forge.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "Merge"
	MergeMethodSquash MergeMethod = "Squash"
	MergeMethodRebase MergeMethod = "Rebase"
)

// UpdatePROptions carries only the fields to change; nil/unset fields are
// preserved on the forge.
type UpdatePROptions struct {
	Title *string
	Body  *string
	Base  *string
}

// CreatePROptions are the required and optional fields for create_pr.
type CreatePROptions struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Draft      bool
}

// MergeOptions configure merge_pr.
type MergeOptions struct {
	Method        MergeMethod
	CommitTitle   string
	CommitMessage string
}

// MergeResult is the outcome of merge_pr.
type MergeResult struct {
	SHA     string
	Merged  bool
	Message string
}

// Comment is a single issue/PR comment.
type Comment struct {
	ID   int64
	Body string
}

// Client is the ForgeClient capability set.
type Client interface {
	GetPR(ctx context.Context, owner, repo string, number uint64) (PR, error)
	// FindPRForBranch returns nil if no open PR exists for head_branch.
	FindPRForBranch(ctx context.Context, owner, repo, headBranch string) (*PR, error)
	CreatePR(ctx context.Context, owner, repo string, opts CreatePROptions) (PR, error)
	UpdatePR(ctx context.Context, owner, repo string, number uint64, opts UpdatePROptions) (PR, error)
	MergePR(ctx context.Context, owner, repo string, number uint64, opts MergeOptions) (MergeResult, error)
	DeleteRef(ctx context.Context, owner, repo, branch string) error

	ListPRComments(ctx context.Context, owner, repo string, number uint64) ([]Comment, error)
	CreatePRComment(ctx context.Context, owner, repo string, number uint64, body string) (Comment, error)
	UpdatePRComment(ctx context.Context, owner, repo string, commentID int64, body string) (Comment, error)
}
