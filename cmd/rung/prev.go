package main

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
)

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Checkout the parent of the current branch in the stack",
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

		b, ok := st.Find(current)
		if !ok {
			return errors.New("current branch is not part of the stack")
		}
		if b.Parent == nil {
			mainline, err := getMainline()
			if err != nil {
				return err
			}
			if err := driver.Checkout(cmd.Context(), mainline); err != nil {
				return err
			}
			fmt.Printf("Checked out %s.\n", mainline)
			return nil
		}
		if err := driver.Checkout(cmd.Context(), *b.Parent); err != nil {
			return err
		}
		fmt.Printf("Checked out %s.\n", *b.Parent)
		return nil
	},
}
