package main

import (
	"context"
	"fmt"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/stack"
	"github.com/rung-dev/rung/internal/treerender"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stack tree rooted at the mainline branch",
	RunE:  runTree,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Alias for status: show the stack tree",
	RunE:  runTree,
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Alias for status: show the stack tree",
	RunE:  runTree,
}

func runTree(cmd *cobra.Command, args []string) error {
	driver, err := getDriver(cmd.Context())
	if err != nil {
		return err
	}
	store, err := requireStore(driver)
	if err != nil {
		return err
	}
	mainline, err := getMainline()
	if err != nil {
		return err
	}

	st, err := store.LoadStack()
	if err != nil {
		return err
	}

	current, err := driver.CurrentBranch(cmd.Context())
	if err != nil {
		current = mainline
	}

	annotations := buildAnnotations(cmd.Context(), driver, st, current)
	fmt.Print(treerender.Tree(st, mainline, annotations))
	return nil
}

// buildAnnotations decorates every StackBranch with its PR state (best
// effort: a forge lookup failure just omits that branch's PR annotation
// rather than failing the whole render) and marks current.
func buildAnnotations(ctx context.Context, driver *gitrepo.RealDriver, st *stack.Stack, current branchname.BranchName) map[string]treerender.Annotation {
	annotations := map[string]treerender.Annotation{}
	client, clientErr := getForgeClient()
	owner, repo, ownerErr := getOwnerRepo(ctx, driver)

	for _, b := range st.Branches() {
		ann := treerender.Annotation{Current: b.Name.String() == current.String()}
		if b.PR != nil {
			ann.PR = b.PR
			if clientErr == nil && ownerErr == nil {
				if pr, err := client.GetPR(ctx, owner, repo, *b.PR); err == nil {
					ann.PRState = string(pr.State)
				}
			}
		}
		if commit, err := driver.BranchCommit(ctx, b.Name); err == nil {
			if when, err := driver.CommitTime(ctx, commit); err == nil {
				ann.CommitTime = when
			}
		}
		annotations[b.Name.String()] = ann
	}
	return annotations
}
