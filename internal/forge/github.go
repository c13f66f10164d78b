package forge

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/google/go-github/v62/github"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/rlog"
	"golang.org/x/oauth2"
)

// GitHubClient implements Client against the real GitHub REST API.
type GitHubClient struct {
	gh *github.Client
}

// NewGitHubClient builds a GitHubClient authenticated with token. baseUrl,
// if non-empty and not the default github.com, points at a GitHub
// Enterprise instance.
func NewGitHubClient(token, baseUrl string) (*GitHubClient, error) {
	if token == "" {
		return nil, errors.New("no GitHub token provided (do you need to configure one?)")
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)
	gh := github.NewClient(httpClient)
	if baseUrl != "" && baseUrl != "https://github.com" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseUrl, baseUrl)
		if err != nil {
			return nil, errors.Wrap(err, "failed to configure GitHub Enterprise base URL")
		}
	}
	return &GitHubClient{gh: gh}, nil
}

func (c *GitHubClient) GetPR(ctx context.Context, owner, repo string, number uint64) (PR, error) {
	start := time.Now()
	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, int(number))
	rlog.ForgeCall("get_pr", start, nil, err)
	if err != nil {
		return PR{}, wrapError(resp, err)
	}
	return fromGitHubPR(pr), nil
}

func (c *GitHubClient) FindPRForBranch(ctx context.Context, owner, repo, headBranch string) (*PR, error) {
	start := time.Now()
	prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		Head:  owner + ":" + headBranch,
		State: "open",
		ListOptions: github.ListOptions{
			PerPage: 1,
		},
	})
	rlog.ForgeCall("find_pr_for_branch", start, nil, err)
	if err != nil {
		return nil, wrapError(resp, err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	pr := fromGitHubPR(prs[0])
	return &pr, nil
}

func (c *GitHubClient) CreatePR(ctx context.Context, owner, repo string, opts CreatePROptions) (PR, error) {
	req := &github.NewPullRequest{
		Title: github.String(opts.Title),
		Head:  github.String(opts.HeadBranch),
		Base:  github.String(opts.BaseBranch),
		Draft: github.Bool(opts.Draft),
	}
	if opts.Body != "" {
		req.Body = github.String(opts.Body)
	}
	start := time.Now()
	pr, resp, err := c.gh.PullRequests.Create(ctx, owner, repo, req)
	rlog.ForgeCall("create_pr", start, nil, err)
	if err != nil {
		return PR{}, wrapError(resp, err)
	}
	return fromGitHubPR(pr), nil
}

func (c *GitHubClient) UpdatePR(ctx context.Context, owner, repo string, number uint64, opts UpdatePROptions) (PR, error) {
	update := &github.PullRequest{}
	if opts.Title != nil {
		update.Title = opts.Title
	}
	if opts.Body != nil {
		update.Body = opts.Body
	}
	if opts.Base != nil {
		update.Base = &github.PullRequestBranch{Ref: opts.Base}
	}
	start := time.Now()
	pr, resp, err := c.gh.PullRequests.Edit(ctx, owner, repo, int(number), update)
	rlog.ForgeCall("update_pr", start, nil, err)
	if err != nil {
		return PR{}, wrapError(resp, err)
	}
	return fromGitHubPR(pr), nil
}

func (c *GitHubClient) MergePR(ctx context.Context, owner, repo string, number uint64, opts MergeOptions) (MergeResult, error) {
	method := "merge"
	switch opts.Method {
	case MergeMethodSquash:
		method = "squash"
	case MergeMethodRebase:
		method = "rebase"
	}
	start := time.Now()
	result, resp, err := c.gh.PullRequests.Merge(ctx, owner, repo, int(number), opts.CommitMessage, &github.PullRequestOptions{
		CommitTitle: opts.CommitTitle,
		MergeMethod: method,
	})
	rlog.ForgeCall("merge_pr", start, nil, err)
	if err != nil {
		return MergeResult{}, wrapError(resp, err)
	}
	return MergeResult{
		SHA:     result.GetSHA(),
		Merged:  result.GetMerged(),
		Message: result.GetMessage(),
	}, nil
}

func (c *GitHubClient) DeleteRef(ctx context.Context, owner, repo, branch string) error {
	start := time.Now()
	resp, err := c.gh.Git.DeleteRef(ctx, owner, repo, "refs/heads/"+branch)
	rlog.ForgeCall("delete_ref", start, nil, err)
	if err != nil {
		return wrapError(resp, err)
	}
	return nil
}

func (c *GitHubClient) ListPRComments(ctx context.Context, owner, repo string, number uint64) ([]Comment, error) {
	start := time.Now()
	comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, int(number), nil)
	rlog.ForgeCall("list_pr_comments", start, nil, err)
	if err != nil {
		return nil, wrapError(resp, err)
	}
	out := make([]Comment, 0, len(comments))
	for _, comment := range comments {
		out = append(out, Comment{ID: comment.GetID(), Body: comment.GetBody()})
	}
	return out, nil
}

func (c *GitHubClient) CreatePRComment(ctx context.Context, owner, repo string, number uint64, body string) (Comment, error) {
	start := time.Now()
	comment, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, int(number), &github.IssueComment{
		Body: github.String(body),
	})
	rlog.ForgeCall("create_pr_comment", start, nil, err)
	if err != nil {
		return Comment{}, wrapError(resp, err)
	}
	return Comment{ID: comment.GetID(), Body: comment.GetBody()}, nil
}

func (c *GitHubClient) UpdatePRComment(ctx context.Context, owner, repo string, commentID int64, body string) (Comment, error) {
	start := time.Now()
	comment, resp, err := c.gh.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{
		Body: github.String(body),
	})
	rlog.ForgeCall("update_pr_comment", start, nil, err)
	if err != nil {
		return Comment{}, wrapError(resp, err)
	}
	return Comment{ID: comment.GetID(), Body: comment.GetBody()}, nil
}

func fromGitHubPR(pr *github.PullRequest) PR {
	state := PRStateOpen
	switch {
	case pr.GetMerged():
		state = PRStateMerged
	case pr.GetState() == "closed":
		state = PRStateClosed
	}
	return PR{
		Number:     uint64(pr.GetNumber()),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		State:      state,
		Draft:      pr.GetDraft(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		HTMLURL:    pr.GetHTMLURL(),
	}
}

// wrapError maps a go-github error into the §7 forge error taxonomy.
func wrapError(resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp == nil || resp.Response == nil {
		return rerrors.ForgeTransport{Details: err.Error()}
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining == "0" {
			reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
			return rerrors.ForgeRateLimited{ResetUnix: reset}
		}
		return rerrors.ForgeAuthenticationFailed{}
	case http.StatusForbidden:
		if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining == "0" {
			reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
			return rerrors.ForgeRateLimited{ResetUnix: reset}
		}
	}
	return rerrors.ForgeApiError{Status: resp.StatusCode, Message: err.Error()}
}
