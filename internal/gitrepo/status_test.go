package gitrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatusLineClean(t *testing.T) {
	var st gitStatus
	for _, line := range []string{
		"# branch.oid abc123",
		"# branch.head main",
	} {
		parseStatusLine(line, &st)
	}
	assert.Equal(t, "main", st.CurrentBranch)
	assert.True(t, st.IsCleanIgnoringUntracked())
}

func TestParseStatusLineDetached(t *testing.T) {
	var st gitStatus
	parseStatusLine("# branch.head (detached)", &st)
	assert.Empty(t, st.CurrentBranch)
}

func TestParseStatusLineStagedAndUnstaged(t *testing.T) {
	var st gitStatus
	parseStatusLine("1 M. N... 100644 100644 100644 aaaa bbbb staged.txt", &st)
	parseStatusLine("1 .M N... 100644 100644 100644 aaaa bbbb unstaged.txt", &st)
	parseStatusLine("1 MM N... 100644 100644 100644 aaaa bbbb both.txt", &st)

	assert.ElementsMatch(t, []string{"staged.txt", "both.txt"}, st.StagedTrackedFiles)
	assert.ElementsMatch(t, []string{"unstaged.txt", "both.txt"}, st.UnstagedTrackedFiles)
	assert.False(t, st.IsCleanIgnoringUntracked())
}

func TestParseStatusLineUnmerged(t *testing.T) {
	var st gitStatus
	parseStatusLine("u UU N... 100644 100644 100644 100644 aaaa bbbb cccc conflict.txt", &st)
	assert.Equal(t, []string{"conflict.txt"}, st.UnmergedFiles)
	assert.False(t, st.IsCleanIgnoringUntracked())
}

func TestParseStatusLineUntrackedDoesNotCountAsDirty(t *testing.T) {
	var st gitStatus
	parseStatusLine("? new-file.txt", &st)
	assert.Equal(t, []string{"new-file.txt"}, st.UntrackedFiles)
	assert.True(t, st.IsCleanIgnoringUntracked())
}
