package treerender_test

import (
	"testing"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/treerender"
	"github.com/stretchr/testify/require"
)

func branch(t *testing.T, name string) branchname.BranchName {
	t.Helper()
	b, err := branchname.New(name)
	require.NoError(t, err)
	return b
}

func TestTreeRendersNestedStack(t *testing.T) {
	main := branch(t, "main")
	featA := branch(t, "feat-a")
	featB := branch(t, "feat-b")

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: featA}))
	require.NoError(t, st.AddBranch(stack.Branch{Name: featB, Parent: &featA}))

	prA := uint64(1)
	out := treerender.Tree(st, main, map[string]treerender.Annotation{
		"feat-a": {PR: &prA, PRState: "Open"},
		"feat-b": {Current: true},
	})

	require.Contains(t, out, "main\n")
	require.Contains(t, out, "    feat-a  #1 (Open)\n")
	require.Contains(t, out, "        feat-b  <- current\n")
}

func TestStackCommentIncludesMarker(t *testing.T) {
	main := branch(t, "main")
	featA := branch(t, "feat-a")

	st := stack.New()
	require.NoError(t, st.AddBranch(stack.Branch{Name: featA}))

	body := treerender.StackComment(st, main, nil)
	require.True(t, treerender.HasMarker(body))
	require.Contains(t, body, "feat-a")
}
