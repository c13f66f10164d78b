package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/config"
	"github.com/rung-dev/rung/internal/forge"
	"github.com/rung-dev/rung/internal/gitrepo"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/rung-dev/rung/internal/statestore"
)

var cachedDriver *gitrepo.RealDriver

// getDriver opens (and caches) the RealDriver rooted at rootFlags.Directory
// or the current working directory.
func getDriver(ctx context.Context) (*gitrepo.RealDriver, error) {
	if cachedDriver != nil {
		return cachedDriver, nil
	}
	dir := rootFlags.Directory
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	driver, err := gitrepo.Open(ctx, dir)
	if err != nil {
		return nil, err
	}
	cachedDriver = driver
	return cachedDriver, nil
}

// getStore returns the StateStore scoped to the repository's common git
// directory, matching where StateStore.Init and config.Load both look.
func getStore(driver *gitrepo.RealDriver) *statestore.Store {
	return statestore.New(filepath.Join(driver.GitCommonDir(), "rung"))
}

// getOwnerRepo resolves the forge owner/repo pair from the origin remote.
func getOwnerRepo(ctx context.Context, driver *gitrepo.RealDriver) (owner, repo string, err error) {
	url, err := driver.OriginURL(ctx)
	if err != nil {
		return "", "", err
	}
	return driver.ParseForgeRemote(url)
}

// getMainline resolves the configured mainline branch.
func getMainline() (branchname.BranchName, error) {
	name := config.Rung.Sync.Mainline
	if name == "" {
		name = "main"
	}
	return branchname.New(name)
}

// getForgeClient builds a GitHub client from the configured token.
func getForgeClient() (forge.Client, error) {
	if config.Rung.GitHub.Token == "" {
		return nil, rerrors.ForgeAuthenticationFailed{}
	}
	return forge.NewGitHubClient(config.Rung.GitHub.Token, config.Rung.GitHub.BaseUrl)
}

// requireStore returns an initialized Store or rerrors.ErrNotInitialized.
func requireStore(driver *gitrepo.RealDriver) (*statestore.Store, error) {
	store := getStore(driver)
	if !store.IsInitialized() {
		return nil, rerrors.ErrNotInitialized
	}
	return store, nil
}
