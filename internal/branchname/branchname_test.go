package branchname_test

import (
	"strings"
	"testing"

	"github.com/rung-dev/rung/internal/branchname"
	"github.com/rung-dev/rung/internal/rerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValid(t *testing.T) {
	for _, name := range []string{
		"feature/add-xyz",
		"fix-123",
		"a",
		"user.name/thing",
	} {
		t.Run(name, func(t *testing.T) {
			bn, err := branchname.New(name)
			require.NoError(t, err)
			assert.Equal(t, name, bn.String())
		})
	}
}

func TestNewInvalid(t *testing.T) {
	for _, tt := range []struct {
		name   string
		input  string
		reason string
	}{
		{"empty", "", "empty"},
		{"at-sign", "@", "'@'"},
		{"leading-dot", ".foo", "start or end with '.'"},
		{"trailing-dot", "foo.", "start or end with '.'"},
		{"lock-suffix", "foo.lock", "'.lock'"},
		{"leading-slash", "/foo", "start or end with '/'"},
		{"trailing-slash", "foo/", "start or end with '/'"},
		{"dotdot", "../x", "'..'"},
		{"double-slash", "foo//bar", "'//'"},
		{"at-brace", "foo@{bar", "'@{'"},
		{"slash-dot", "foo/.bar", "'/.'"},
		{"space", "foo bar", "character"},
		{"tilde", "foo~bar", "~"},
		{"dollar", "foo$bar", "$"},
		{"semicolon", "foo;bar", ";"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := branchname.New(tt.input)
			require.Error(t, err)
			var invalid rerrors.InvalidBranchName
			require.True(t, rerrors_As(err, &invalid))
			assert.Equal(t, tt.input, invalid.Name)
			assert.Contains(t, err.Error(), "invalid branch name")
		})
	}
}

func rerrors_As(err error, target *rerrors.InvalidBranchName) bool {
	v, ok := rerrors.As[rerrors.InvalidBranchName](err)
	if ok {
		*target = v
	}
	return ok
}

func TestSlugify(t *testing.T) {
	for _, tt := range []struct{ in, out string }{
		{"Add the Foo Feature", "add-the-foo-feature"},
		{"Fix bug #123!!", "fix-bug-123"},
		{"multi\nline\nmessage", "multi"},
		{"   leading and trailing   ", "leading-and-trailing"},
		{"---", ""},
		{"日本語 feature", "日本語-feature"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got := branchname.Slugify(tt.in)
			assert.Equal(t, tt.out, got)
		})
	}
}

func TestSlugifyTruncation(t *testing.T) {
	long := strings.Repeat("word ", 30)
	slug := branchname.Slugify(long)
	assert.LessOrEqual(t, len([]rune(slug)), 50)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

func TestSlugifyIdempotent(t *testing.T) {
	for _, in := range []string{"Add the Foo Feature", "fix bug #123", strings.Repeat("word ", 40)} {
		slug := branchname.Slugify(in)
		if slug == "" {
			continue
		}
		assert.Equal(t, slug, branchname.Slugify(slug))
	}
}

func TestFromMessageRejectsEmptySlug(t *testing.T) {
	_, err := branchname.FromMessage("!!!---###")
	require.Error(t, err)
}
