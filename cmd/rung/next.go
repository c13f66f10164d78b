package main

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/rung-dev/rung/internal/colors"
	"github.com/spf13/cobra"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Checkout the child of the current branch in the stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := getDriver(cmd.Context())
		if err != nil {
			return err
		}
		store, err := requireStore(driver)
		if err != nil {
			return err
		}
		st, err := store.LoadStack()
		if err != nil {
			return err
		}
		current, err := driver.CurrentBranch(cmd.Context())
		if err != nil {
			return err
		}

		children := st.ChildrenOf(current)
		if len(children) == 0 {
			return errors.New("current branch has no children in the stack")
		}
		if len(children) > 1 {
			fmt.Println(colors.Warning(fmt.Sprintf("current branch has %d children; checking out the first", len(children))))
		}
		if err := driver.Checkout(cmd.Context(), children[0].Name); err != nil {
			return err
		}
		fmt.Printf("Checked out %s.\n", children[0].Name)
		return nil
	},
}
