package main

import (
	"fmt"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/move"
	"github.com/spf13/cobra"
)

var moveFlags struct {
	Onto string
}

var moveCmd = &cobra.Command{
	Use:   "move [branch]",
	Short: "Re-parent a stack branch onto a new base",
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

		var newParent branchname.BranchName
		if moveFlags.Onto != "" {
			newParent, err = branchname.New(moveFlags.Onto)
			if err != nil {
				return err
			}
		}

		if err := move.New(driver, store, mainline).Move(cmd.Context(), branch, newParent); err != nil {
			return err
		}

		target := moveFlags.Onto
		if target == "" {
			target = mainline.String()
		}
		fmt.Printf("Re-parented %s onto %s.\n", branch, target)
		return nil
	},
}

func init() {
	moveCmd.Flags().StringVar(&moveFlags.Onto, "onto", "", "the branch to re-parent onto (defaults to the mainline)")
}
