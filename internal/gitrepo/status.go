package gitrepo

import (
	"context"
	"os"
	"regexp"
	"strings"

	"emperror.dev/errors"
)

// gitStatus mirrors av's GitStatus: the parsed shape of
// `git status --porcelain=v2 --branch --untracked-files`.
type gitStatus struct {
	CurrentBranch        string
	UnstagedTrackedFiles []string
	StagedTrackedFiles   []string
	UnmergedFiles        []string
	UntrackedFiles       []string
}

// IsCleanIgnoringUntracked reports clean status per spec §4.4's is_clean:
// untracked files never count as dirty.
func (st gitStatus) IsCleanIgnoringUntracked() bool {
	return len(st.UnstagedTrackedFiles) == 0 &&
		len(st.StagedTrackedFiles) == 0 &&
		len(st.UnmergedFiles) == 0
}

var patternBranchHead = regexp.MustCompile(`# branch\.head (.+)`)

// Field counts per record type in `git status --porcelain=v2`, i.e. the
// number of space-separated fields preceding the path (renamed/copied
// records additionally carry a NUL- or tab-separated origPath, which is
// ignored here).
const (
	ordinaryFieldsBeforePath = 8 // "1" XY sub mH mI mW hH hI
	renamedFieldsBeforePath  = 9 // "2" XY sub mH mI mW hH hI score
	unmergedFieldsBeforePath = 10
)

func (d *RealDriver) status(ctx context.Context) (gitStatus, error) {
	res, err := d.shell(ctx, RunOpts{
		Args:      []string{"status", "--porcelain=v2", "--branch", "--untracked-files"},
		ExitError: true,
	})
	if err != nil {
		return gitStatus{}, errors.Wrap(err, "failed to read repository status")
	}
	var st gitStatus
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		parseStatusLine(line, &st)
	}
	return st, nil
}

// parseStatusLine parses a single line of `git status --porcelain=v2`
// output. Paths are taken verbatim after the fixed-count leading fields
// rather than matched by a hex-digit pattern, since mode/hash fields like
// "100644" are themselves valid hex and would otherwise be mistaken for
// part of the path by a naively greedy pattern.
func parseStatusLine(line string, st *gitStatus) {
	if line == "" {
		return
	}
	if m := patternBranchHead.FindStringSubmatch(line); m != nil {
		if m[1] != "(detached)" {
			st.CurrentBranch = m[1]
		}
		return
	}
	switch {
	case strings.HasPrefix(line, "1 "):
		path, ok := pathAfterFields(line, ordinaryFieldsBeforePath)
		if !ok {
			return
		}
		xy := fieldAt(line, 1)
		if len(xy) == 2 {
			if xy[0] != '.' {
				st.StagedTrackedFiles = append(st.StagedTrackedFiles, path)
			}
			if xy[1] != '.' {
				st.UnstagedTrackedFiles = append(st.UnstagedTrackedFiles, path)
			}
		}
	case strings.HasPrefix(line, "2 "):
		path, ok := pathAfterFields(line, renamedFieldsBeforePath)
		if !ok {
			return
		}
		path, _, _ = strings.Cut(path, "\t")
		xy := fieldAt(line, 1)
		if len(xy) == 2 {
			if xy[0] != '.' {
				st.StagedTrackedFiles = append(st.StagedTrackedFiles, path)
			}
			if xy[1] != '.' {
				st.UnstagedTrackedFiles = append(st.UnstagedTrackedFiles, path)
			}
		}
	case strings.HasPrefix(line, "u "):
		if path, ok := pathAfterFields(line, unmergedFieldsBeforePath); ok {
			st.UnmergedFiles = append(st.UnmergedFiles, path)
		}
	case strings.HasPrefix(line, "? "):
		st.UntrackedFiles = append(st.UntrackedFiles, line[2:])
	}
}

// fieldAt returns the i-th whitespace-separated field of line, or "" if
// there are fewer than i+1 fields.
func fieldAt(line string, i int) string {
	fields := strings.Fields(line)
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

// pathAfterFields returns the remainder of line after skipping n
// whitespace-separated fields, which is the path for record types whose
// path may itself legitimately contain spaces.
func pathAfterFields(line string, n int) (string, bool) {
	rest := line
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(rest, ' ')
		if idx < 0 {
			return "", false
		}
		rest = rest[idx+1:]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

func pathExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
