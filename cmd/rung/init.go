package main

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize rung in the current repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := getDriver(cmd.Context())
		if err != nil {
			return err
		}
		store := getStore(driver)
		if store.IsInitialized() {
			return errors.New("rung is already initialized in this repository")
		}
		if err := store.Init(); err != nil {
			return err
		}
		fmt.Println("Initialized rung in this repository.")
		return nil
	},
}
