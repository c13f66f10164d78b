package main

import (
	"fmt"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/colors"
	"github.com/rung-dev/rung/internal/submit"
	"github.com/spf13/cobra"
)

var submitFlags struct {
	Draft bool
	Force bool
	Title string
	All   bool
}

var submitCmd = &cobra.Command{
	Use:   "submit [branch]",
	Short: "Push the current branch (or the named one) and its descendants, opening PRs as needed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := getDriver(cmd.Context())
		if err != nil {
			return err
		}
		store, err := requireStore(driver)
		if err != nil {
			return err
		}
		client, err := getForgeClient()
		if err != nil {
			return err
		}
		owner, repo, err := getOwnerRepo(cmd.Context(), driver)
		if err != nil {
			return err
		}
		mainline, err := getMainline()
		if err != nil {
			return err
		}

		var from branchname.BranchName
		if submitFlags.All {
			from = branchname.BranchName{}
		} else if len(args) == 1 {
			from, err = branchname.New(args[0])
			if err != nil {
				return err
			}
		} else {
			from, err = driver.CurrentBranch(cmd.Context())
			if err != nil {
				return err
			}
		}

		engine := submit.New(driver, client, store, owner, repo, mainline)
		result, err := engine.Submit(cmd.Context(), from, submit.Opts{
			Draft: submitFlags.Draft,
			Force: submitFlags.Force,
			Title: submitFlags.Title,
		})
		if err != nil {
			return err
		}

		for _, s := range result.Submissions {
			verb := "Updated"
			if s.Created {
				verb = "Opened"
			}
			fmt.Printf("  %s %s #%d (%s)\n", colors.Success("✓"), verb, s.PR, s.Branch)
		}
		for _, w := range result.Warnings {
			fmt.Println(colors.Warning("warning: " + w))
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().BoolVar(&submitFlags.Draft, "draft", false, "open new pull requests as drafts")
	submitCmd.Flags().BoolVar(&submitFlags.Force, "force", false, "force-with-lease push, for re-pushing a branch whose history was rewritten since its last push")
	submitCmd.Flags().StringVar(&submitFlags.Title, "title", "", "title for a newly created pull request")
	submitCmd.Flags().BoolVar(&submitFlags.All, "all", false, "submit every branch in the stack, not just the current one and its descendants")
}
