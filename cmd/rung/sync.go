package main

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/rung-dev/rung/internal/colors"
	"github.com/rung-dev/rung/internal/sync"
	"github.com/spf13/cobra"
)

var syncFlags struct {
	Continue bool
	Abort    bool
	NoPush   bool
	NoFetch  bool
	DryRun   bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebase stack branches onto their (possibly moved) parents",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncFlags.Continue && syncFlags.Abort {
			return errors.New("--continue and --abort are mutually exclusive")
		}

		engine, err := newSyncEngine(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if syncFlags.Abort {
			if err := engine.AbortSync(ctx); err != nil {
				return err
			}
			fmt.Println("Sync aborted; branches restored to their pre-sync state.")
			return nil
		}

		opts := sync.Opts{NoPush: syncFlags.NoPush, NoFetch: syncFlags.NoFetch, DryRun: syncFlags.DryRun}

		var result sync.Result
		if syncFlags.Continue {
			result, err = engine.ContinueSync(ctx, opts)
		} else {
			result, err = engine.Sync(ctx, opts)
		}
		if err != nil {
			return err
		}

		printSyncResult(result)
		if result.Status == sync.StatusPaused {
			return errors.New("sync paused on a conflict; resolve it and run `rung sync --continue`, or `rung sync --abort`")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFlags.Continue, "continue", false, "resume a paused sync after resolving conflicts")
	syncCmd.Flags().BoolVar(&syncFlags.Abort, "abort", false, "abandon a paused sync and restore pre-sync branch tips")
	syncCmd.Flags().BoolVar(&syncFlags.NoPush, "no-push", false, "don't push rebased branches")
	syncCmd.Flags().BoolVar(&syncFlags.NoFetch, "no-fetch", false, "don't fetch the mainline branch first")
	syncCmd.Flags().BoolVar(&syncFlags.DryRun, "dry-run", false, "print the plan without executing it")
}

func newSyncEngine(cmd *cobra.Command) (*sync.Engine, error) {
	driver, err := getDriver(cmd.Context())
	if err != nil {
		return nil, err
	}
	store, err := requireStore(driver)
	if err != nil {
		return nil, err
	}
	client, err := getForgeClient()
	if err != nil {
		return nil, err
	}
	owner, repo, err := getOwnerRepo(cmd.Context(), driver)
	if err != nil {
		return nil, err
	}
	mainline, err := getMainline()
	if err != nil {
		return nil, err
	}
	return sync.New(driver, client, store, owner, repo, mainline), nil
}

func printSyncResult(result sync.Result) {
	for _, r := range result.Reconciled {
		fmt.Printf("Reconciled %s: parent moved from %s to %s\n", r.Name, r.OldParent, r.NewParent)
	}
	switch result.Status {
	case sync.StatusAlreadySynced:
		if result.DryRun && len(result.Plan) > 0 {
			for _, a := range result.Plan {
				fmt.Printf("  would rebase %s onto %s\n", a.Branch, a.NewBase)
			}
			break
		}
		fmt.Println(colors.Success("Already up to date."))
	case sync.StatusDone:
		for _, b := range result.BranchesRebased {
			fmt.Printf("  %s %s\n", colors.Success("✓"), b)
		}
		fmt.Println(colors.Success("Sync complete."))
	case sync.StatusPaused:
		fmt.Printf("%s paused rebasing %s: conflicts in %v\n", colors.Warning("!"), result.AtBranch, result.ConflictFiles)
	}
	for _, w := range result.Warnings {
		fmt.Println(colors.Warning("warning: " + w))
	}
}
