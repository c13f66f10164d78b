// Command rung is the CLI entrypoint: a thin cobra wrapper over the
// internal engines (sync, mergecleanup, submit, move, create, doctor).
//
// Grounded on av's cmd/av/main.go: SilenceErrors/SilenceUsage with manual
// error rendering, a PersistentPreRunE that loads repo-local config before
// any subcommand runs, and a --debug flag that raises log verbosity and
// prints a full error instead of the one-line rendering.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/kr/text"
	"github.com/rung-dev/rung/internal/config"
	"github.com/rung-dev/rung/internal/rlog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

var rootFlags struct {
	Debug     bool
	Directory string
}

var rootCmd = &cobra.Command{
	Use:   "rung",
	Short: "Manage stacks of dependent Git branches and their pull requests",

	SilenceErrors: true,
	SilenceUsage:  true,

	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rlog.SetDebug(rootFlags.Debug)

		repoConfigDir := ""
		if driver, err := getDriver(cmd.Context()); err != nil {
			logrus.WithError(err).Debug("unable to open git repository (probably not inside one)")
		} else {
			repoConfigDir = filepath.Join(driver.GitCommonDir(), "rung")
		}

		if _, err := config.Load(repoConfigDir); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootFlags.Debug, "debug", false, "enable verbose debug logging")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.Directory, "repo", "C", "", "directory to use for the git repository")

	rootCmd.AddCommand(
		initCmd,
		createCmd,
		statusCmd,
		logCmd,
		treeCmd,
		syncCmd,
		submitCmd,
		mergeCmd,
		undoCmd,
		doctorCmd,
		nextCmd,
		prevCmd,
		moveCmd,
	)
}

func main() {
	err := rootCmd.Execute()
	checkCliVersion()
	if err != nil {
		if rootFlags.Debug {
			fmt.Fprintf(os.Stderr, "error: %s\n%s\n", err, text.Indent(fmt.Sprintf("%+v", err), "\t"))
		} else {
			fmt.Fprint(os.Stderr, renderError(err))
		}
		os.Exit(1)
	}
}

func renderError(err error) string {
	bold := color.New(color.Bold, color.FgRed)
	return bold.Sprint("error: ") + err.Error() + "\n"
}

// checkCliVersion warns on stderr if a newer release of rung is available.
// Best-effort: network or cache failures are logged at debug level and
// otherwise ignored, since this check should never block a command.
func checkCliVersion() {
	if config.Version == config.VersionDev {
		logrus.Debug("skipping version check (development build)")
		return
	}
	for _, arg := range os.Args {
		if arg == "completion" {
			logrus.Debug("skipping version check (shell completion)")
			return
		}
	}

	latest, err := config.FetchLatestVersion(context.Background())
	if err != nil {
		logrus.WithError(err).Debug("failed to determine latest released version of rung")
		return
	}
	if semver.Compare(config.Version, latest) < 0 {
		faint := color.New(color.Faint, color.Bold)
		fmt.Fprint(
			os.Stderr,
			faint.Sprint(">> A new version of rung is available: "),
			color.RedString(config.Version),
			faint.Sprint(" => "),
			color.GreenString(latest),
			"\n",
		)
	}
}
