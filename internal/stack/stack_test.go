package stack_test

import (
	"encoding/json"
	"testing"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bn(t *testing.T, s string) branchname.BranchName {
	t.Helper()
	b, err := branchname.New(s)
	require.NoError(t, err)
	return b
}

func ptr(b branchname.BranchName) *branchname.BranchName { return &b }

func buildLinearStack(t *testing.T) *stack.Stack {
	t.Helper()
	s := stack.New()
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "feat-1")}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "feat-2"), Parent: ptr(bn(t, "feat-1"))}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "feat-3"), Parent: ptr(bn(t, "feat-2"))}))
	return s
}

func TestAddBranchRejectsDuplicate(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "a")}))
	err := s.AddBranch(stack.Branch{Name: bn(t, "a")})
	require.Error(t, err)
}

func TestAddBranchRejectsSelfParent(t *testing.T) {
	s := stack.New()
	name := bn(t, "a")
	err := s.AddBranch(stack.Branch{Name: name, Parent: &name})
	require.Error(t, err)
}

func TestFind(t *testing.T) {
	s := buildLinearStack(t)
	b, ok := s.Find(bn(t, "feat-2"))
	require.True(t, ok)
	assert.Equal(t, "feat-1", b.Parent.String())

	_, ok = s.Find(bn(t, "nonexistent"))
	assert.False(t, ok)
}

func TestChildrenOf(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "root")}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "child-a"), Parent: ptr(bn(t, "root"))}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "child-b"), Parent: ptr(bn(t, "root"))}))

	children := s.ChildrenOf(bn(t, "root"))
	require.Len(t, children, 2)
	assert.Equal(t, "child-a", children[0].Name.String())
	assert.Equal(t, "child-b", children[1].Name.String())
}

func TestAncestry(t *testing.T) {
	s := buildLinearStack(t)
	ancestry := s.Ancestry(bn(t, "feat-3"))
	require.Len(t, ancestry, 2)
	assert.Equal(t, "feat-1", ancestry[0].String())
	assert.Equal(t, "feat-2", ancestry[1].String())
}

func TestAncestryOfRoot(t *testing.T) {
	s := buildLinearStack(t)
	assert.Empty(t, s.Ancestry(bn(t, "feat-1")))
}

func TestDescendantsBreadthFirst(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "root")}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "a"), Parent: ptr(bn(t, "root"))}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "b"), Parent: ptr(bn(t, "root"))}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "a-1"), Parent: ptr(bn(t, "a"))}))

	names := make([]string, 0)
	for _, b := range s.Descendants(bn(t, "root")) {
		names = append(names, b.Name.String())
	}
	assert.Equal(t, []string{"a", "b", "a-1"}, names)
}

func TestRemoveDoesNotReparentChildren(t *testing.T) {
	s := buildLinearStack(t)
	s.Remove(bn(t, "feat-2"))

	_, ok := s.Find(bn(t, "feat-2"))
	assert.False(t, ok)

	child, ok := s.Find(bn(t, "feat-3"))
	require.True(t, ok)
	assert.Equal(t, "feat-2", child.Parent.String())

	assert.Equal(t, 2, s.Len())
}

func TestSetParentRepairsDanglingChild(t *testing.T) {
	s := buildLinearStack(t)
	s.Remove(bn(t, "feat-2"))
	s.SetParent(bn(t, "feat-3"), ptr(bn(t, "feat-1")))

	child, ok := s.Find(bn(t, "feat-3"))
	require.True(t, ok)
	assert.Equal(t, "feat-1", child.Parent.String())
}

func TestHasCycleFalseForLinearStack(t *testing.T) {
	s := buildLinearStack(t)
	assert.False(t, s.HasCycle())
}

func TestHasCycleDetectsCycle(t *testing.T) {
	s := stack.New()
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "a"), Parent: ptr(bn(t, "b"))}))
	require.NoError(t, s.AddBranch(stack.Branch{Name: bn(t, "b"), Parent: ptr(bn(t, "a"))}))
	assert.True(t, s.HasCycle())
}

func TestIsTopological(t *testing.T) {
	s := buildLinearStack(t)
	assert.True(t, s.IsTopological())
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	s := buildLinearStack(t)
	pr := uint64(42)
	s.SetPR(bn(t, "feat-3"), &pr)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var loaded stack.Stack
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.Equal(t, s.Len(), loaded.Len())
	b, ok := loaded.Find(bn(t, "feat-3"))
	require.True(t, ok)
	require.NotNil(t, b.PR)
	assert.Equal(t, uint64(42), *b.PR)
	require.NotNil(t, b.Parent)
	assert.Equal(t, "feat-2", b.Parent.String())
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	var s stack.Stack
	err := json.Unmarshal([]byte(`{"branches":[{"name":"a","parent":null,"pr":null,"extra":true}]}`), &s)
	require.Error(t, err)
}

func TestUnmarshalRejectsInvalidBranchName(t *testing.T) {
	var s stack.Stack
	err := json.Unmarshal([]byte(`{"branches":[{"name":"foo bar","parent":null,"pr":null}]}`), &s)
	require.Error(t, err)
}
