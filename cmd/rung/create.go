package main

import (
	"fmt"

	"github.com/rung-dev/rung/internal/create"
	"github.com/spf13/cobra"
)

var createFlags struct {
	Message string
	Commit  bool
}

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new stack branch on top of the current one",
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

		opts := create.Opts{Message: createFlags.Message, Commit: createFlags.Commit}
		if len(args) == 1 {
			opts.Name = args[0]
		}

		name, err := create.New(driver, store).Create(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Printf("Created and checked out %q.\n", name)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createFlags.Message, "message", "m", "", "commit message to derive the branch name from")
	createCmd.Flags().BoolVarP(&createFlags.Commit, "commit", "c", false, "stage and commit the working tree after creating the branch")
}
