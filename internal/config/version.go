package config

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// VersionDev marks a development build that skips the update check.
const VersionDev = "<dev>"

// Version is the version of the rung binary. Set automatically by the
// release build, left at VersionDev otherwise.
var Version = VersionDev

// FetchLatestVersion returns the tag name of the latest GitHub release of
// rung, consulting a 24-hour local cache before hitting the network.
func FetchLatestVersion(ctx context.Context) (string, error) {
	cacheFile, err := xdg.CacheFile(filepath.Join("rung", "version-check"))
	if err != nil {
		return "", err
	}

	if stat, statErr := os.Stat(cacheFile); statErr == nil && time.Since(stat.ModTime()) <= 24*time.Hour {
		data, err := os.ReadFile(cacheFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		"https://api.github.com/repos/rung-dev/rung/releases/latest",
		nil,
	)
	if err != nil {
		return "", err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var body struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}

	if err := os.WriteFile(cacheFile, []byte(body.TagName), 0o644); err != nil {
		return "", err
	}

	return body.TagName, nil
}
