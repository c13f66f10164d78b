package main

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/colors"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/mergecleanup"
	"github.com/spf13/cobra"
)

var mergeFlags struct {
	Method   string
	NoDelete bool
}

var mergeCmd = &cobra.Command{
	Use:   "merge [branch]",
	Short: "Merge a branch's pull request and rebase its descendants onto its former parent",
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

		var branch branchname.BranchName
		if len(args) == 1 {
			branch, err = branchname.New(args[0])
			if err != nil {
				return err
			}
		} else {
			branch, err = driver.CurrentBranch(cmd.Context())
			if err != nil {
				return err
			}
		}

		method, err := parseMergeMethod(mergeFlags.Method)
		if err != nil {
			return err
		}

		engine := mergecleanup.New(driver, client, store, owner, repo)
		result, err := engine.Merge(cmd.Context(), branch, mainline, mergecleanup.Opts{
			Method:   method,
			NoDelete: mergeFlags.NoDelete,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Merged #%d into %s.\n", colors.Success("✓"), result.PR, result.MergedInto)
		for _, d := range result.Descendants {
			fmt.Printf("  rebased %s onto %s\n", d, result.MergedInto)
		}
		for _, w := range result.Warnings {
			fmt.Println(colors.Warning("warning: " + w))
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeFlags.Method, "method", "squash", "merge method: merge, squash, or rebase")
	mergeCmd.Flags().BoolVar(&mergeFlags.NoDelete, "no-delete", false, "don't delete the remote branch after merging")
}

func parseMergeMethod(s string) (forge.MergeMethod, error) {
	switch strings.ToLower(s) {
	case "merge":
		return forge.MergeMethodMerge, nil
	case "squash":
		return forge.MergeMethodSquash, nil
	case "rebase":
		return forge.MergeMethodRebase, nil
	default:
		return "", errors.Errorf("unknown merge method %q (want merge, squash, or rebase)", s)
	}
}
