package gitrepo

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	giturls "github.com/chainguard-dev/git-urls"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/sirupsen/logrus"
)

const defaultRemote = "origin"

// RealDriver is the Driver implementation used outside of tests: go-git for
// ref/commit reads, the git binary (via shell) for anything that mutates
// the working copy or talks to a remote.
type RealDriver struct {
	repoDir string
	gitDir  string // git-common-dir, absolute
	repo    *git.Repository
	log     logrus.FieldLogger
}

// Open opens the git repository containing startDir. It resolves the
// absolute path to the repository's common git directory (shared across
// worktrees, see GitCommonDir), used both here and by StateStore to locate
// <gitdir>/rung.
func Open(ctx context.Context, startDir string) (*RealDriver, error) {
	top, err := shell(ctx, startDir, RunOpts{Args: []string{"rev-parse", "--show-toplevel"}, ExitError: true})
	if err != nil {
		return nil, rerrors.ErrNotInRepository
	}
	repoDir := top.Text()

	common, err := shell(ctx, startDir, RunOpts{Args: []string{"rev-parse", "--git-common-dir"}, ExitError: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to determine git common directory")
	}
	gitDir := common.Text()
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repoDir, gitDir)
	}

	repo, err := git.PlainOpenWithOptions(repoDir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open git repository")
	}

	return &RealDriver{
		repoDir: repoDir,
		gitDir:  gitDir,
		repo:    repo,
		log:     logrus.WithField("repo", filepath.Base(repoDir)),
	}, nil
}

// RepoDir is the working tree root.
func (d *RealDriver) RepoDir() string { return d.repoDir }

// GitCommonDir is the repository's common git metadata directory, the
// scope root for StateStore's rung/ subdirectory.
func (d *RealDriver) GitCommonDir() string { return d.gitDir }

func (d *RealDriver) shell(ctx context.Context, opts RunOpts) (*RunResult, error) {
	return shell(ctx, d.repoDir, opts)
}

func (d *RealDriver) CurrentBranch(_ context.Context) (branchname.BranchName, error) {
	ref, err := d.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return branchname.BranchName{}, errors.Wrap(err, "failed to resolve HEAD")
	}
	if ref.Type() != plumbing.SymbolicReference {
		return branchname.BranchName{}, rerrors.ErrDetachedHead
	}
	return branchname.New(ref.Target().Short())
}

func (d *RealDriver) BranchExists(_ context.Context, name branchname.BranchName) (bool, error) {
	_, err := d.repo.Reference(plumbing.NewBranchReferenceName(name.String()), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up branch %q", name)
	}
	return true, nil
}

func (d *RealDriver) CreateBranch(ctx context.Context, name branchname.BranchName) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"branch", name.String()}})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.Errorf("failed to create branch %q: %s", name, res.Stderr)
	}
	return nil
}

func (d *RealDriver) Checkout(ctx context.Context, name branchname.BranchName) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"checkout", name.String()}})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.Errorf("failed to checkout %q: %s", name, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

func (d *RealDriver) DeleteBranch(ctx context.Context, name branchname.BranchName) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"branch", "-D", name.String()}})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.Errorf("failed to delete branch %q: %s", name, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

func (d *RealDriver) BranchCommit(_ context.Context, name branchname.BranchName) (CommitId, error) {
	ref, err := d.repo.Reference(plumbing.NewBranchReferenceName(name.String()), true)
	if err != nil {
		return "", rerrors.BranchNotFound{Name: name.String()}
	}
	return CommitId(ref.Hash().String()), nil
}

func (d *RealDriver) RemoteBranchCommit(_ context.Context, name branchname.BranchName) (CommitId, error) {
	refName := plumbing.NewRemoteReferenceName(defaultRemote, name.String())
	ref, err := d.repo.Reference(refName, true)
	if err != nil {
		return "", rerrors.BranchNotFound{Name: defaultRemote + "/" + name.String()}
	}
	return CommitId(ref.Hash().String()), nil
}

func (d *RealDriver) MergeBase(ctx context.Context, a, b CommitId) (CommitId, error) {
	res, err := d.shell(ctx, RunOpts{Args: []string{"merge-base", string(a), string(b)}, ExitError: true})
	if err != nil {
		return "", errors.WrapIff(err, "no merge base between %s and %s", a, b)
	}
	return CommitId(res.Text()), nil
}

func (d *RealDriver) CommitsBetween(ctx context.Context, from, to CommitId) ([]CommitId, error) {
	res, err := d.shell(ctx, RunOpts{
		Args:      []string{"rev-list", "--reverse", string(from) + ".." + string(to)},
		ExitError: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list commits between %s and %s", from, to)
	}
	lines := res.Lines()
	ids := make([]CommitId, len(lines))
	for i, l := range lines {
		ids[i] = CommitId(l)
	}
	return ids, nil
}

func (d *RealDriver) FindCommit(_ context.Context, id CommitId) (bool, error) {
	_, err := d.repo.CommitObject(plumbing.NewHash(string(id)))
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up commit %s", id)
	}
	return true, nil
}

func (d *RealDriver) CommitTime(_ context.Context, id CommitId) (time.Time, error) {
	commit, err := d.repo.CommitObject(plumbing.NewHash(string(id)))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to look up commit %s", id)
	}
	return commit.Committer.When, nil
}

func (d *RealDriver) IsClean(ctx context.Context) (bool, error) {
	st, err := d.status(ctx)
	if err != nil {
		return false, err
	}
	return st.IsCleanIgnoringUntracked(), nil
}

func (d *RealDriver) RequireClean(ctx context.Context) error {
	st, err := d.status(ctx)
	if err != nil {
		return err
	}
	if st.IsCleanIgnoringUntracked() {
		return nil
	}
	var dirty []string
	dirty = append(dirty, st.StagedTrackedFiles...)
	dirty = append(dirty, st.UnstagedTrackedFiles...)
	dirty = append(dirty, st.UnmergedFiles...)
	return rerrors.DirtyWorkingDirectory{Files: dirty}
}

func (d *RealDriver) IsRebasing(ctx context.Context) (bool, error) {
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		res, err := d.shell(ctx, RunOpts{Args: []string{"rev-parse", "--git-path", name}})
		if err != nil {
			continue
		}
		p := strings.TrimSpace(res.Text())
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(d.repoDir, p)
		}
		if pathExists(p) {
			return true, nil
		}
	}
	return false, nil
}

func (d *RealDriver) StageAndCommit(ctx context.Context, message string) error {
	st, err := d.status(ctx)
	if err != nil {
		return err
	}
	if st.IsCleanIgnoringUntracked() && len(st.UntrackedFiles) == 0 {
		return nil
	}
	if res, err := d.shell(ctx, RunOpts{Args: []string{"add", "-A"}}); err != nil {
		return err
	} else if res.ExitCode != 0 {
		return errors.Errorf("failed to stage changes: %s", res.Stderr)
	}
	if message == "" {
		message = "rung: commit staged changes"
	}
	res, err := d.shell(ctx, RunOpts{Args: []string{"commit", "-m", message}})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.Errorf("failed to commit staged changes: %s", res.Stderr)
	}
	return nil
}

func (d *RealDriver) ResetBranch(ctx context.Context, name branchname.BranchName, commit CommitId) error {
	current, err := d.CurrentBranch(ctx)
	if err == nil && current.Equal(name) {
		res, err := d.shell(ctx, RunOpts{Args: []string{"reset", "--hard", string(commit)}})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return errors.Errorf("failed to reset %q to %s: %s", name, commit, res.Stderr)
		}
		return nil
	}
	res, err := d.shell(ctx, RunOpts{Args: []string{"update-ref", "refs/heads/" + name.String(), string(commit)}})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.Errorf("failed to reset %q to %s: %s", name, commit, res.Stderr)
	}
	return nil
}

// rebaseDisableEditor prevents `git rebase --continue` from popping an
// interactive commit-message editor.
var rebaseDisableEditor = []string{"GIT_EDITOR=true"}

func (d *RealDriver) RebaseOnto(ctx context.Context, target CommitId) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"rebase", string(target)}})
	return d.interpretRebaseResult(res, err)
}

func (d *RealDriver) RebaseOntoFrom(ctx context.Context, newBase, oldBase CommitId) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"rebase", "--onto", string(newBase), string(oldBase)}})
	return d.interpretRebaseResult(res, err)
}

func (d *RealDriver) interpretRebaseResult(res *RunResult, err error) error {
	if err != nil {
		return errors.Wrap(err, "failed to invoke git rebase")
	}
	if res.ExitCode == 0 {
		return nil
	}
	if rebasing, _ := d.IsRebasing(context.Background()); rebasing {
		files, statusErr := d.conflictedFiles(context.Background())
		if statusErr == nil {
			return rerrors.RebaseConflict{Files: files}
		}
	}
	return rerrors.RebaseFailed{Details: strings.TrimSpace(string(res.Stderr))}
}

func (d *RealDriver) conflictedFiles(ctx context.Context) ([]string, error) {
	st, err := d.status(ctx)
	if err != nil {
		return nil, err
	}
	return st.UnmergedFiles, nil
}

func (d *RealDriver) RebaseContinue(ctx context.Context) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"rebase", "--continue"}, Env: rebaseDisableEditor})
	if err != nil && strings.Contains(err.Error(), "No rebase in progress") {
		return rerrors.ErrNoSyncInProgress
	}
	return d.interpretRebaseResult(res, err)
}

func (d *RealDriver) RebaseAbort(ctx context.Context) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"rebase", "--abort"}})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !strings.Contains(string(res.Stderr), "No rebase in progress") {
		return errors.Errorf("failed to abort rebase: %s", res.Stderr)
	}
	return nil
}

func (d *RealDriver) Push(ctx context.Context, name branchname.BranchName, forceWithLease bool) error {
	args := []string{"push"}
	if forceWithLease {
		args = append(args, "--force-with-lease")
	}
	args = append(args, defaultRemote, name.String())
	res, err := d.shell(ctx, RunOpts{Args: args})
	if err != nil {
		return rerrors.PushFailed{Branch: name.String(), Details: err.Error()}
	}
	if res.ExitCode != 0 {
		return rerrors.PushFailed{Branch: name.String(), Details: strings.TrimSpace(string(res.Stderr))}
	}
	return nil
}

func (d *RealDriver) Fetch(ctx context.Context, name branchname.BranchName) error {
	res, err := d.shell(ctx, RunOpts{Args: []string{"fetch", defaultRemote, name.String()}})
	if err != nil {
		return rerrors.FetchFailed{Details: err.Error()}
	}
	if res.ExitCode != 0 {
		return rerrors.FetchFailed{Details: strings.TrimSpace(string(res.Stderr))}
	}
	return nil
}

func (d *RealDriver) OriginURL(ctx context.Context) (string, error) {
	res, err := d.shell(ctx, RunOpts{Args: []string{"remote", "get-url", defaultRemote}})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		if strings.Contains(string(res.Stderr), "No such remote") {
			return "", rerrors.ErrRemoteNotFound
		}
		return "", errors.New("cannot determine the repository's origin remote")
	}
	url := res.Text()
	if url == "" {
		return "", rerrors.ErrRemoteNotFound
	}
	return url, nil
}

// ParseForgeRemote parses a canonical SSH (git@host:owner/repo.git) or
// HTTPS (https://host/owner/repo.git) forge remote URL.
func (d *RealDriver) ParseForgeRemote(url string) (owner, repo string, err error) {
	u, parseErr := giturls.Parse(url)
	if parseErr != nil {
		return "", "", rerrors.InvalidRemoteUrl{URL: url}
	}
	path := strings.TrimSuffix(u.Path, ".git")
	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", rerrors.InvalidRemoteUrl{URL: url}
	}
	return parts[0], parts[1], nil
}
