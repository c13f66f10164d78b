package create_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/create"
	"github.com/rung-dev/rung/internal/gitrepo"
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
	engine *create.Engine
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

	engine := create.New(driver, store)

	return &fixture{dir: dir, driver: driver, store: store, engine: engine}
}

func (f *fixture) branch(t *testing.T, name string) branchname.BranchName {
	t.Helper()
	b, err := branchname.New(name)
	require.NoError(t, err)
	return b
}

func TestCreateWithExplicitName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name, err := f.engine.Create(ctx, create.Opts{Name: "feat-a"})
	require.NoError(t, err)
	require.Equal(t, "feat-a", name.String())

	current, err := f.driver.CurrentBranch(ctx)
	require.NoError(t, err)
	require.True(t, current.Equal(name))

	st, err := f.store.LoadStack()
	require.NoError(t, err)
	b, ok := st.Find(name)
	require.True(t, ok)
	require.Nil(t, b.Parent)
}

func TestCreateDerivesNameFromMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name, err := f.engine.Create(ctx, create.Opts{Message: "Add Widget Support!"})
	require.NoError(t, err)
	require.Equal(t, "add-widget-support", name.String())
}

func TestCreateRejectsExistingBranchName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, create.Opts{Name: "feat-a"})
	require.NoError(t, err)

	require.NoError(t, f.driver.Checkout(ctx, f.branch(t, "main")))

	_, err = f.engine.Create(ctx, create.Opts{Name: "feat-a"})
	require.Error(t, err)
}

func TestCreateParentsOnStackedBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	featA, err := f.engine.Create(ctx, create.Opts{Name: "feat-a"})
	require.NoError(t, err)
	commitFile(t, f.dir, "a.txt", "a\n")

	st, err := f.store.LoadStack()
	require.NoError(t, err)
	_, inStack := st.Find(featA)
	require.True(t, inStack)
	require.NoError(t, f.store.SaveStack(st))

	featB, err := f.engine.Create(ctx, create.Opts{Name: "feat-b"})
	require.NoError(t, err)

	reloaded, err := f.store.LoadStack()
	require.NoError(t, err)
	b, ok := reloaded.Find(featB)
	require.True(t, ok)
	require.NotNil(t, b.Parent)
	require.True(t, b.Parent.Equal(featA))
}

func TestCreateDoesNotParentOnUntrackedBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name, err := f.engine.Create(ctx, create.Opts{Name: "feat-a"})
	require.NoError(t, err)

	st, err := f.store.LoadStack()
	require.NoError(t, err)
	b, ok := st.Find(name)
	require.True(t, ok)
	require.Nil(t, b.Parent)
}

func TestCreateWithCommitStagesAndCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.driver.BranchCommit(ctx, f.branch(t, "main"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "staged.txt"), []byte("staged\n"), 0o644))

	name, err := f.engine.Create(ctx, create.Opts{Name: "feat-a", Message: "add staged file", Commit: true})
	require.NoError(t, err)

	after, err := f.driver.BranchCommit(ctx, name)
	require.NoError(t, err)
	require.NotEqual(t, before, after)

	clean, err := f.driver.IsClean(ctx)
	require.NoError(t, err)
	require.True(t, clean)
}
