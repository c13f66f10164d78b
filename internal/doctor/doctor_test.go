package doctor_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/doctor"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/forge/forgetest"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/statestore"
	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
	return string(out)
}

func commitFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-m", "write "+name)
}

type fixture struct {
	dir    string
	driver *gitrepo.RealDriver
	store  *statestore.Store
	forge  *forgetest.Fake
	engine *doctor.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	origin := t.TempDir()
	runGit(t, origin, "init", "--bare", "-b", "main")

	dir := t.TempDir()
	runGit(t, dir, "clone", origin, ".")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	commitFile(t, dir, "README.md", "hello\n")
	runGit(t, dir, "push", "origin", "main")

	ctx := context.Background()
	driver, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	store := statestore.New(filepath.Join(dir, ".git", "rung"))
	require.NoError(t, store.Init())

	fake := forgetest.New()
	mainline, err := branchname.New("main")
	require.NoError(t, err)
	engine := doctor.New(driver, fake, store, "acme", "widgets", mainline)

	return &fixture{dir: dir, driver: driver, store: store, forge: fake, engine: engine}
}

func (f *fixture) branch(t *testing.T, name string) branchname.BranchName {
	t.Helper()
	b, err := branchname.New(name)
	require.NoError(t, err)
	return b
}

func (f *fixture) createBranch(t *testing.T, name, fromFile, contents string) branchname.BranchName {
	t.Helper()
	ctx := context.Background()
	b := f.branch(t, name)
	require.NoError(t, f.driver.CreateBranch(ctx, b))
	require.NoError(t, f.driver.Checkout(ctx, b))
	commitFile(t, f.dir, fromFile, contents)
	return b
}

func TestRunOnUninitializedReportsError(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	driver, err := gitrepo.Open(context.Background(), dir)
	require.NoError(t, err)
	store := statestore.New(filepath.Join(dir, ".git", "rung"))
	mainline, err := branchname.New("main")
	require.NoError(t, err)
	engine := doctor.New(driver, forgetest.New(), store, "acme", "widgets", mainline)

	report := engine.Run(context.Background())
	require.False(t, report.Healthy)
	require.Equal(t, 1, report.Errors)
}

func TestRunOnHealthyStackReportsNoIssues(t *testing.T) {
	f := newFixture(t)
	feat := f.createBranch(t, "feat-a", "a.txt", "a\n")
	require.NoError(t, f.driver.Checkout(context.Background(), f.branch(t, "main")))

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: feat}))
	require.NoError(t, f.store.SaveStack(st))

	report := f.engine.Run(context.Background())
	require.True(t, report.Healthy)
	require.Empty(t, report.Issues)
}

func TestRunFlagsStaleBranch(t *testing.T) {
	f := newFixture(t)
	feat := f.branch(t, "feat-gone")

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: feat}))
	require.NoError(t, f.store.SaveStack(st))

	report := f.engine.Run(context.Background())
	require.False(t, report.Healthy)
	require.Equal(t, 1, report.Warnings)
	require.Contains(t, report.Issues[0].Message, "feat-gone")
}

func TestRunFlagsBranchBehindParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	feat := f.createBranch(t, "feat-a", "a.txt", "a\n")
	require.NoError(t, f.driver.Push(ctx, feat, false))

	require.NoError(t, f.driver.Checkout(ctx, f.branch(t, "main")))
	commitFile(t, f.dir, "main-only.txt", "advance\n")
	require.NoError(t, f.driver.Push(ctx, f.branch(t, "main"), false))

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: feat}))
	require.NoError(t, f.store.SaveStack(st))

	report := f.engine.Run(ctx)
	require.False(t, report.Healthy)
	found := false
	for _, i := range report.Issues {
		if i.Severity == doctor.SeverityWarning && i.Message == "1 branch(es) are behind their parent" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunFlagsMergedPR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	feat := f.createBranch(t, "feat-a", "a.txt", "a\n")
	require.NoError(t, f.driver.Checkout(ctx, f.branch(t, "main")))

	pr, err := f.forge.CreatePR(ctx, "acme", "widgets", forge.CreatePROptions{
		Title: "feat-a", HeadBranch: "feat-a", BaseBranch: "main",
	})
	require.NoError(t, err)
	f.forge.Seed(forge.PR{Number: pr.Number, State: forge.PRStateMerged, HeadBranch: "feat-a", BaseBranch: "main"})

	prNum := pr.Number
	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: feat, PR: &prNum}))
	require.NoError(t, f.store.SaveStack(st))

	report := f.engine.Run(ctx)
	require.False(t, report.Healthy)
	require.Greater(t, report.Warnings, 0)
}

func TestRunFlagsBaseBranchDivergence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	feat := f.createBranch(t, "feat-a", "a.txt", "a\n")
	require.NoError(t, f.driver.Checkout(ctx, f.branch(t, "main")))

	pr, err := f.forge.CreatePR(ctx, "acme", "widgets", forge.CreatePROptions{
		Title: "feat-a", HeadBranch: "feat-a", BaseBranch: "develop",
	})
	require.NoError(t, err)

	prNum := pr.Number
	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: feat, PR: &prNum}))
	require.NoError(t, f.store.SaveStack(st))

	report := f.engine.Run(ctx)
	require.False(t, report.Healthy)
	found := false
	for _, i := range report.Issues {
		if i.Message == `PR #`+itoa(prNum)+` for "feat-a" has base "develop" but the stack records "main"` {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunReportsBackupAgeAsInfoNotWarning(t *testing.T) {
	f := newFixture(t)
	feat := f.createBranch(t, "feat-a", "a.txt", "a\n")
	require.NoError(t, f.driver.Checkout(context.Background(), f.branch(t, "main")))

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: feat}))
	require.NoError(t, f.store.SaveStack(st))

	_, err := f.store.CreateBackup(time.Now(), []statestore.BackupEntry{
		{Branch: feat, Commit: "deadbeef"},
	})
	require.NoError(t, err)

	report := f.engine.Run(context.Background())
	require.True(t, report.Healthy)
	require.NotEmpty(t, report.Issues)
	for _, i := range report.Issues {
		require.Equal(t, doctor.SeverityInfo, i.Severity)
		require.Contains(t, i.Message, "sync backup")
	}
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
