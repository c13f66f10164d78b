package move_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/move"
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
	engine *move.Engine
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

	mainline, err := branchname.New("main")
	require.NoError(t, err)
	engine := move.New(driver, store, mainline)

	return &fixture{dir: dir, driver: driver, store: store, engine: engine}
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

func TestMoveRejectsCycle(t *testing.T) {
	f := newFixture(t)
	featA := f.createBranch(t, "feat-a", "a.txt", "a\n")
	featB := f.createBranch(t, "feat-b", "b.txt", "b\n")

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: featA}))
	require.NoError(t, st.AddBranch(stack.Branch{Name: featB, Parent: &featA}))
	require.NoError(t, f.store.SaveStack(st))

	err := f.engine.Move(context.Background(), featA, featB)
	require.Error(t, err)
}

func TestMoveReparentsOntoSibling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	main := f.branch(t, "main")
	featA := f.createBranch(t, "feat-a", "a.txt", "a\n")
	require.NoError(t, f.driver.Checkout(ctx, main))
	featB := f.createBranch(t, "feat-b", "b.txt", "b\n")

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: featA}))
	require.NoError(t, st.AddBranch(stack.Branch{Name: featB}))
	require.NoError(t, f.store.SaveStack(st))

	require.NoError(t, f.engine.Move(ctx, featB, featA))

	reloaded, err := f.store.LoadStack()
	require.NoError(t, err)
	b, ok := reloaded.Find(featB)
	require.True(t, ok)
	require.NotNil(t, b.Parent)
	require.True(t, b.Parent.Equal(featA))

	featACommit, err := f.driver.BranchCommit(ctx, featA)
	require.NoError(t, err)
	featBCommit, err := f.driver.BranchCommit(ctx, featB)
	require.NoError(t, err)
	mb, err := f.driver.MergeBase(ctx, featACommit, featBCommit)
	require.NoError(t, err)
	require.Equal(t, featACommit, mb)

	require.FileExists(t, filepath.Join(f.dir, "b.txt"))
}

func TestMoveBackToMainline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	main := f.branch(t, "main")
	featA := f.createBranch(t, "feat-a", "a.txt", "a\n")
	featB := f.createBranch(t, "feat-b", "b.txt", "b\n")

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: featA}))
	require.NoError(t, st.AddBranch(stack.Branch{Name: featB, Parent: &featA}))
	require.NoError(t, f.store.SaveStack(st))

	require.NoError(t, f.engine.Move(ctx, featB, branchname.BranchName{}))

	reloaded, err := f.store.LoadStack()
	require.NoError(t, err)
	b, ok := reloaded.Find(featB)
	require.True(t, ok)
	require.Nil(t, b.Parent)

	mainCommit, err := f.driver.RemoteBranchCommit(ctx, main)
	require.NoError(t, err)
	featBCommit, err := f.driver.BranchCommit(ctx, featB)
	require.NoError(t, err)
	mb, err := f.driver.MergeBase(ctx, mainCommit, featBCommit)
	require.NoError(t, err)
	require.Equal(t, mainCommit, mb)
}
