// Package config holds rung's ambient configuration, loaded from a layered
// set of config files plus environment variable overrides.
//
// This mirrors av's internal/config package: a package-level struct
// populated by viper, searched across XDG-style paths plus a
// repository-local override directory supplied by the caller.
package config

import (
	"os"

	"emperror.dev/errors"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

type GitHub struct {
	Token   string
	BaseUrl string
}

type PullRequest struct {
	Draft       bool
	OpenBrowser bool
}

type Sync struct {
	// Remote is the name of the git remote that hosts the forge repository.
	// Defaults to "origin" if unset.
	Remote string
	// Mainline is the repository's conventional long-lived base branch.
	// Defaults to "main" if unset.
	Mainline string
	// AdditionalTrunkBranches lists extra branches that should also be
	// treated as valid sync/merge targets besides Mainline.
	AdditionalTrunkBranches []string
}

var Rung = struct {
	PullRequest PullRequest
	GitHub      GitHub
	Sync        Sync
}{
	PullRequest: PullRequest{
		OpenBrowser: true,
	},
	GitHub: GitHub{
		BaseUrl: "https://github.com",
	},
	Sync: Sync{
		Remote:   "origin",
		Mainline: "main",
	},
}

// Load initializes configuration values from disk and environment.
// repoConfigDir, if non-empty, is an additional repository-local directory
// to search (typically <git-common-dir>/rung).
// Returns whether a config file was found and an error if one occurred
// while reading an existing file.
func Load(repoConfigDir string) (bool, error) {
	loaded, err := loadFromFile(repoConfigDir)
	loadFromEnv()
	return loaded, err
}

func loadFromFile(repoConfigDir string) (bool, error) {
	v := viper.New()
	v.SetConfigName("config")

	v.AddConfigPath("$XDG_CONFIG_HOME/rung")
	if dir, err := xdg.ConfigFile("rung"); err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("$HOME/.config/rung")
	v.AddConfigPath("$HOME/.rung")
	v.AddConfigPath("$RUNG_HOME")
	if repoConfigDir != "" {
		v.AddConfigPath(repoConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return false, nil
		}
		return false, err
	}

	if err := v.Unmarshal(&Rung); err != nil {
		return true, errors.Wrap(err, "failed to read rung config")
	}
	return true, nil
}

func loadFromEnv() {
	if token := os.Getenv("RUNG_GITHUB_TOKEN"); token != "" {
		Rung.GitHub.Token = token
	} else if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		Rung.GitHub.Token = token
	}
	if remote := os.Getenv("RUNG_REMOTE"); remote != "" {
		Rung.Sync.Remote = remote
	}
}
