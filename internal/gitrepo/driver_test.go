package gitrepo_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/stretchr/testify/require"
)

// initRepo mirrors av's gittest fixtures: it shells out to the real git
// binary to build a throwaway repository, since RealDriver itself shells
// out and there is no in-memory substitute worth maintaining in parallel.
func initRepo(t *testing.T) (*gitrepo.RealDriver, string) {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	commitFile(t, dir, "README.md", "hello\n")

	d, err := gitrepo.Open(context.Background(), dir)
	require.NoError(t, err)
	return d, dir
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func commitFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-m", "write "+name)
}

func TestCurrentBranch(t *testing.T) {
	d, _ := initRepo(t)
	b, err := d.CurrentBranch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "main", b.String())
}

func TestCreateCheckoutAndCommit(t *testing.T) {
	d, dir := initRepo(t)
	ctx := context.Background()
	feat, err := branchname.New("feat-1")
	require.NoError(t, err)

	require.NoError(t, d.CreateBranch(ctx, feat))
	exists, err := d.BranchExists(ctx, feat)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, d.Checkout(ctx, feat))
	current, err := d.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "feat-1", current.String())

	commitFile(t, dir, "feat.txt", "feature\n")
	commit, err := d.BranchCommit(ctx, feat)
	require.NoError(t, err)
	require.NotEmpty(t, commit)
}

func TestIsCleanAndRequireClean(t *testing.T) {
	d, dir := initRepo(t)
	ctx := context.Background()

	clean, err := d.IsClean(ctx)
	require.NoError(t, err)
	require.True(t, clean)
	require.NoError(t, d.RequireClean(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed\n"), 0o644))
	clean, err = d.IsClean(ctx)
	require.NoError(t, err)
	require.False(t, clean)

	err = d.RequireClean(ctx)
	require.Error(t, err)
	dirty, ok := rerrors.As[rerrors.DirtyWorkingDirectory](err)
	require.True(t, ok)
	require.Contains(t, dirty.Files, "README.md")
}

func TestIsCleanIgnoresUntracked(t *testing.T) {
	d, dir := initRepo(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("x\n"), 0o644))

	clean, err := d.IsClean(ctx)
	require.NoError(t, err)
	require.True(t, clean)
}

func TestMergeBaseAndRebaseOnto(t *testing.T) {
	d, dir := initRepo(t)
	ctx := context.Background()

	feat, err := branchname.New("feat-1")
	require.NoError(t, err)
	require.NoError(t, d.CreateBranch(ctx, feat))
	require.NoError(t, d.Checkout(ctx, feat))
	commitFile(t, dir, "feat.txt", "feature\n")

	mainC, err := d.BranchCommit(ctx, mustBranch(t, "main"))
	require.NoError(t, err)
	featC, err := d.BranchCommit(ctx, feat)
	require.NoError(t, err)

	mb, err := d.MergeBase(ctx, mainC, featC)
	require.NoError(t, err)
	require.Equal(t, mainC, mb)

	require.NoError(t, d.Checkout(ctx, mustBranch(t, "main")))
	commitFile(t, dir, "main-only.txt", "advance\n")
	newMainC, err := d.BranchCommit(ctx, mustBranch(t, "main"))
	require.NoError(t, err)

	require.NoError(t, d.Checkout(ctx, feat))
	err = d.RebaseOnto(ctx, newMainC)
	require.NoError(t, err)

	mb, err = d.MergeBase(ctx, newMainC, mustCommit(t, d, feat))
	require.NoError(t, err)
	require.Equal(t, newMainC, mb)
}

func TestRebaseOntoFromTransplant(t *testing.T) {
	d, dir := initRepo(t)
	ctx := context.Background()

	// main -> feat-1 -> feat-2, then main advances (simulating a squash
	// merge of feat-1), and feat-2's unique commit is transplanted onto
	// main using the old feat-1 tip as the upstream boundary.
	feat1, err := branchname.New("feat-1")
	require.NoError(t, err)
	require.NoError(t, d.CreateBranch(ctx, feat1))
	require.NoError(t, d.Checkout(ctx, feat1))
	commitFile(t, dir, "feat1.txt", "one\n")
	oldFeat1Tip, err := d.BranchCommit(ctx, feat1)
	require.NoError(t, err)

	feat2, err := branchname.New("feat-2")
	require.NoError(t, err)
	require.NoError(t, d.CreateBranch(ctx, feat2))
	require.NoError(t, d.Checkout(ctx, feat2))
	commitFile(t, dir, "feat2.txt", "two\n")

	require.NoError(t, d.Checkout(ctx, mustBranch(t, "main")))
	commitFile(t, dir, "feat1.txt", "one\n") // simulates the squash-merge commit landing on main
	newMainTip, err := d.BranchCommit(ctx, mustBranch(t, "main"))
	require.NoError(t, err)

	require.NoError(t, d.Checkout(ctx, feat2))
	err = d.RebaseOntoFrom(ctx, newMainTip, oldFeat1Tip)
	require.NoError(t, err)

	mb, err := d.MergeBase(ctx, newMainTip, mustCommit(t, d, feat2))
	require.NoError(t, err)
	require.Equal(t, newMainTip, mb)
}

func TestParseForgeRemoteHTTPS(t *testing.T) {
	d, _ := initRepo(t)
	owner, repo, err := d.ParseForgeRemote("https://github.com/rung-dev/rung.git")
	require.NoError(t, err)
	require.Equal(t, "rung-dev", owner)
	require.Equal(t, "rung", repo)
}

func TestParseForgeRemoteSSH(t *testing.T) {
	d, _ := initRepo(t)
	owner, repo, err := d.ParseForgeRemote("git@github.com:rung-dev/rung.git")
	require.NoError(t, err)
	require.Equal(t, "rung-dev", owner)
	require.Equal(t, "rung", repo)
}

func TestOriginURLMissingRemote(t *testing.T) {
	d, _ := initRepo(t)
	_, err := d.OriginURL(context.Background())
	require.ErrorIs(t, err, rerrors.ErrRemoteNotFound)
}

func mustBranch(t *testing.T, s string) branchname.BranchName {
	t.Helper()
	b, err := branchname.New(s)
	require.NoError(t, err)
	return b
}

func mustCommit(t *testing.T, d *gitrepo.RealDriver, b branchname.BranchName) gitrepo.CommitId {
	t.Helper()
	c, err := d.BranchCommit(context.Background(), b)
	require.NoError(t, err)
	return c
}
