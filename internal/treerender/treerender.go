// Package treerender renders a Stack as an indented ASCII tree, for the
// supplemented `rung log`/`rung tree` commands (SPEC_FULL §4) and for the
// PR stack comment spec.md §6.4 describes.
//
// The indentation style is grounded on av's cmd/av/stack_tree.go
// (printStackTree: one level of "    " indent per depth, walking
// parent-to-children). The stack-comment marker convention
// (`<!-- rung-stack -->` opening a single owned PR comment) is grounded on
// nvandessel-frond's internal/dag.RenderStackComment/CommentMarker, which
// this package adapts from frond's emoji-heavy rendering into the plainer
// style the rest of this repo's output uses.
package treerender

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/stack"
)

// Annotation carries the per-branch decoration a caller wants rendered
// alongside its name (PR number/state, current-branch marker, commit
// time). All fields are optional.
type Annotation struct {
	PR       *uint64
	PRState  string
	Current  bool
	// CommitTime, if non-zero, renders as a humanized relative time
	// ("3 hours ago") next to the branch name.
	CommitTime time.Time
}

// Tree renders st as an indented ASCII tree rooted at mainline. annotations
// is keyed by branch name; a missing entry renders the branch name alone.
func Tree(st *stack.Stack, mainline branchname.BranchName, annotations map[string]Annotation) string {
	var sb strings.Builder
	sb.WriteString(mainline.String())
	sb.WriteString("\n")
	for _, b := range st.Branches() {
		if b.Parent != nil {
			continue
		}
		renderNode(&sb, st, b, 1, annotations)
	}
	return sb.String()
}

func renderNode(sb *strings.Builder, st *stack.Stack, b stack.Branch, depth int, annotations map[string]Annotation) {
	indent := strings.Repeat("    ", depth)
	sb.WriteString(indent)
	sb.WriteString(b.Name.String())
	if ann, ok := annotations[b.Name.String()]; ok {
		if ann.PR != nil {
			fmt.Fprintf(sb, "  #%d", *ann.PR)
			if ann.PRState != "" {
				fmt.Fprintf(sb, " (%s)", ann.PRState)
			}
		}
		if !ann.CommitTime.IsZero() {
			fmt.Fprintf(sb, "  (%s)", humanize.Time(ann.CommitTime))
		}
		if ann.Current {
			sb.WriteString("  <- current")
		}
	}
	sb.WriteString("\n")
	for _, child := range st.ChildrenOf(b.Name) {
		renderNode(sb, st, child, depth+1, annotations)
	}
}

// CommentMarker opens every PR stack comment this package owns (spec §6.4).
// The submit flow searches for it to find the comment to update rather than
// creating a duplicate.
const CommentMarker = "<!-- rung-stack -->"

// StackComment renders the full PR stack comment body, wrapped with
// CommentMarker. Callers wanting a particular branch highlighted set
// Annotation.Current on that branch's entry in annotations before calling.
func StackComment(st *stack.Stack, mainline branchname.BranchName, annotations map[string]Annotation) string {
	var sb strings.Builder
	sb.WriteString(CommentMarker)
	sb.WriteString("\n")
	sb.WriteString("This branch is part of a stack managed by rung:\n\n")
	sb.WriteString("```\n")
	sb.WriteString(Tree(st, mainline, annotations))
	sb.WriteString("```\n")
	return sb.String()
}

// HasMarker reports whether body contains the stack-comment marker.
func HasMarker(body string) bool {
	return strings.Contains(body, CommentMarker)
}
