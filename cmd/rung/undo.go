package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rung-dev/rung/internal/colors"
	"github.com/rung-dev/rung/internal/statestore"
	"github.com/rung-dev/rung/internal/sync"
	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore every branch to its tip from the latest sync backup",
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
		if id, err := store.LatestBackup(); err == nil {
			if createdAt, err := statestore.BackupTime(id); err == nil {
				fmt.Printf("Restoring backup from %s...\n", humanize.Time(createdAt))
			}
		}

		// undo never talks to the forge: pass a nil Client, since
		// UndoSync only calls into the RepositoryDriver and StateStore.
		engine := sync.New(driver, nil, store, "", "", mainline)
		if err := engine.UndoSync(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(colors.Success("Restored branches to their last sync backup."))
		return nil
	},
}
