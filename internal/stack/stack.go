// Package stack implements the in-memory Stack data model: an ordered
// forest of branches with explicit parent links, as described in spec §3–4.2.
//
// Grounded on av's internal/meta (Branch/Children/ancestry-by-parent-walk)
// generalized into a single in-memory value type instead of a git-ref-backed
// store (persistence is StateStore's job, see internal/statestore).
package stack

import (
	"bytes"
	"encoding/json"

	"emperror.dev/errors"
	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/rerrors"
)

// Branch is a single StackBranch (spec §3).
type Branch struct {
	Name   branchname.BranchName
	Parent *branchname.BranchName // nil means the branch's base is mainline
	PR     *uint64
}

// Stack is an ordered sequence of Branch, insertion order preserved. That
// order is the natural traversal order for submit/sync/status and must
// always be topological with respect to Parent (invariant 3).
type Stack struct {
	branches []Branch
	index    map[string]int // name -> index into branches
}

// New returns an empty Stack.
func New() *Stack {
	return &Stack{index: map[string]int{}}
}

// AddBranch appends b to the stack. The caller must ensure b.Parent is
// either nil (mainline) or already present in the stack (invariant 1); this
// is not re-validated here since reconciliation legitimately constructs
// branches before their parent has been added in rarer orderings elsewhere.
func (s *Stack) AddBranch(b Branch) error {
	if b.Name.IsZero() {
		return errors.New("cannot add branch with zero-value name")
	}
	if _, exists := s.index[b.Name.String()]; exists {
		return errors.Errorf("branch %q is already in the stack", b.Name)
	}
	if b.Parent != nil && b.Parent.Equal(b.Name) {
		return errors.Errorf("branch %q cannot be its own parent", b.Name)
	}
	s.index[b.Name.String()] = len(s.branches)
	s.branches = append(s.branches, b)
	return nil
}

// Find looks up a branch by name.
func (s *Stack) Find(name branchname.BranchName) (Branch, bool) {
	i, ok := s.index[name.String()]
	if !ok {
		return Branch{}, false
	}
	return s.branches[i], true
}

// Branches returns all branches in stack order. The returned slice is a
// copy; mutating it does not affect the Stack.
func (s *Stack) Branches() []Branch {
	out := make([]Branch, len(s.branches))
	copy(out, s.branches)
	return out
}

// Len returns the number of branches in the stack.
func (s *Stack) Len() int { return len(s.branches) }

// ChildrenOf returns the branches whose Parent equals name, in stack order.
func (s *Stack) ChildrenOf(name branchname.BranchName) []Branch {
	var children []Branch
	for _, b := range s.branches {
		if b.Parent != nil && b.Parent.Equal(name) {
			children = append(children, b)
		}
	}
	return children
}

// Ancestry walks Parent links within the stack, oldest ancestor first,
// terminating at a branch whose parent is mainline (nil) or is absent from
// the stack. The branch itself is not included.
func (s *Stack) Ancestry(name branchname.BranchName) []branchname.BranchName {
	var chain []branchname.BranchName
	cur, ok := s.Find(name)
	if !ok {
		return nil
	}
	seen := map[string]bool{cur.Name.String(): true}
	for cur.Parent != nil {
		if seen[cur.Parent.String()] {
			// Defensive: a cycle should never occur (invariant 2), but don't
			// spin forever if the in-memory state was built incorrectly.
			break
		}
		next, ok := s.Find(*cur.Parent)
		if !ok {
			break
		}
		seen[next.Name.String()] = true
		chain = append(chain, next.Name)
		cur = next
	}
	// Reverse so the oldest ancestor comes first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Descendants returns every branch transitively reachable via ChildrenOf,
// in breadth-first order.
func (s *Stack) Descendants(name branchname.BranchName) []Branch {
	var out []Branch
	queue := []branchname.BranchName{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range s.ChildrenOf(cur) {
			out = append(out, child)
			queue = append(queue, child.Name)
		}
	}
	return out
}

// Remove deletes the branch named name from the stack. It does not touch
// any children's Parent pointers; callers performing reconciliation must
// re-parent children first (spec §4.6 Phase 1, §4.7 step 6).
func (s *Stack) Remove(name branchname.BranchName) {
	i, ok := s.index[name.String()]
	if !ok {
		return
	}
	s.branches = append(s.branches[:i], s.branches[i+1:]...)
	delete(s.index, name.String())
	for n, idx := range s.index {
		if idx > i {
			s.index[n] = idx - 1
		}
	}
}

// SetParent updates the branch's parent pointer in place. Used only by
// reconciliation (merge detection, stale cleanup) and explicit re-parent
// operations. It does not check for cycles itself: reconciliation only
// re-parents a child to its former parent's parent, which cannot create one
// (see spec §9), and move rejects a new parent that is a descendant.
func (s *Stack) SetParent(name branchname.BranchName, parent *branchname.BranchName) {
	i, ok := s.index[name.String()]
	if !ok {
		return
	}
	s.branches[i].Parent = parent
}

// SetPR updates the branch's PR number in place.
func (s *Stack) SetPR(name branchname.BranchName, pr *uint64) {
	i, ok := s.index[name.String()]
	if !ok {
		return
	}
	s.branches[i].PR = pr
}

// IsTopological reports whether every branch appears after its parent,
// when the parent is itself in the stack (invariant 3).
func (s *Stack) IsTopological() bool {
	seen := map[string]bool{}
	for _, b := range s.branches {
		if b.Parent != nil {
			if _, inStack := s.index[b.Parent.String()]; inStack && !seen[b.Parent.String()] {
				return false
			}
		}
		seen[b.Name.String()] = true
	}
	return true
}

// HasCycle reports whether the parent relation contains a cycle (invariant
// 2), via visited-set traversal per spec §9.
func (s *Stack) HasCycle() bool {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(s.branches))
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return false
		}
		state[name] = visiting
		if i, ok := s.index[name]; ok {
			if p := s.branches[i].Parent; p != nil {
				if _, inStack := s.index[p.String()]; inStack {
					if visit(p.String()) {
						return true
					}
				}
			}
		}
		state[name] = done
		return false
	}
	for _, b := range s.branches {
		if visit(b.Name.String()) {
			return true
		}
	}
	return false
}

// jsonBranch is the on-disk shape of a single branch (spec §6.1).
type jsonBranch struct {
	Name   string  `json:"name"`
	Parent *string `json:"parent"`
	PR     *uint64 `json:"pr"`
}

type jsonStack struct {
	Branches []jsonBranch `json:"branches"`
}

// MarshalJSON serializes the stack in the exact §6.1 shape, preserving
// field order and insertion order.
func (s *Stack) MarshalJSON() ([]byte, error) {
	js := jsonStack{Branches: make([]jsonBranch, 0, len(s.branches))}
	for _, b := range s.branches {
		jb := jsonBranch{Name: b.Name.String(), PR: b.PR}
		if b.Parent != nil {
			p := b.Parent.String()
			jb.Parent = &p
		}
		js.Branches = append(js.Branches, jb)
	}
	return json.Marshal(js)
}

// UnmarshalJSON parses the §6.1 shape, rejecting unknown fields (so a
// corrupt or future-versioned state file is never silently truncated) and
// re-validating every branch name (invariant 6).
func (s *Stack) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var js jsonStack
	if err := dec.Decode(&js); err != nil {
		return rerrors.StateCorrupted{Reason: err.Error()}
	}
	ns := New()
	for _, jb := range js.Branches {
		name, err := branchname.New(jb.Name)
		if err != nil {
			return err
		}
		var parent *branchname.BranchName
		if jb.Parent != nil {
			p, err := branchname.New(*jb.Parent)
			if err != nil {
				return err
			}
			parent = &p
		}
		if err := ns.AddBranch(Branch{Name: name, Parent: parent, PR: jb.PR}); err != nil {
			return err
		}
	}
	*s = *ns
	return nil
}
