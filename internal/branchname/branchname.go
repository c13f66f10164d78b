// Package branchname implements BranchName, a validated branch identifier,
// and the slugify helper used to derive one from arbitrary text.
//
// Validation is grounded on the same "collapse to something filesystem- and
// shell-safe" idea as av's internal/utils/sanitize.FileName, generalized to
// the fuller rule set a git ref name and a shell argument both need to
// satisfy.
package branchname

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rung-dev/rung/internal/rerrors"
)

// BranchName is a validated, non-empty branch identifier. The zero value is
// not a valid BranchName; always construct one with New or FromMessage.
type BranchName struct {
	name string
}

// New validates s and returns a BranchName, or an InvalidBranchName error
// describing the first violated rule.
func New(s string) (BranchName, error) {
	if reason := validate(s); reason != "" {
		return BranchName{}, rerrors.InvalidBranchName{Name: s, Reason: reason}
	}
	return BranchName{name: s}, nil
}

// FromMessage derives a BranchName from arbitrary free text by slugifying
// it first (see Slugify) and then validating the result.
func FromMessage(text string) (BranchName, error) {
	slug := Slugify(text)
	if slug == "" {
		return BranchName{}, rerrors.InvalidBranchName{
			Name:   text,
			Reason: "message contains no alphanumeric characters to derive a branch name from",
		}
	}
	return New(slug)
}

// String renders the BranchName; rendering is identity.
func (b BranchName) String() string { return b.name }

// IsZero reports whether b is the unconstructed zero value.
func (b BranchName) IsZero() bool { return b.name == "" }

// Equal reports bytewise equality.
func (b BranchName) Equal(other BranchName) bool { return b.name == other.name }

// MarshalJSON serializes the raw string.
func (b BranchName) MarshalJSON() ([]byte, error) {
	return []byte(`"` + escapeJSON(b.name) + `"`), nil
}

// UnmarshalJSON re-validates on load, closing the loophole of loading a
// corrupt state file that bypasses validation (invariant 6).
func (b *BranchName) UnmarshalJSON(data []byte) error {
	s, err := unquoteJSON(data)
	if err != nil {
		return err
	}
	n, err := New(s)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

func escapeJSON(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func unquoteJSON(data []byte) (string, error) {
	s := strings.TrimSpace(string(data))
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", rerrors.StateCorrupted{Reason: "branch name is not a JSON string"}
	}
	s = s[1 : len(s)-1]
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s, nil
}

const shellDangerousChars = "$;|&><`\\\"'(){}!"
const vcsForbiddenChars = " ~^:?*["

// validate returns a precise, non-empty reason string if s is not a valid
// BranchName, or "" if s is valid.
func validate(s string) string {
	if s == "" {
		return "branch name cannot be empty"
	}
	if s == "@" {
		return "branch name cannot be '@'"
	}
	if strings.Contains(s, "..") {
		return "branch name cannot contain '..'"
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return "branch name cannot start or end with '.'"
	}
	if strings.HasSuffix(s, ".lock") {
		return "branch name cannot end with '.lock'"
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return "branch name cannot start or end with '/'"
	}
	if strings.Contains(s, "//") {
		return "branch name cannot contain '//'"
	}
	if strings.Contains(s, "@{") {
		return "branch name cannot contain '@{'"
	}
	if strings.Contains(s, "/.") {
		return "branch name cannot contain '/.'"
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "branch name cannot contain an ASCII control character"
		}
		if strings.ContainsRune(vcsForbiddenChars, r) {
			return "branch name cannot contain the character " + string(r)
		}
		if strings.ContainsRune(shellDangerousChars, r) {
			return "branch name cannot contain the character " + string(r)
		}
	}
	return ""
}

// Validate exposes the validation rule without constructing a BranchName,
// useful for precondition checks that want an error of a particular shape.
func Validate(s string) error {
	if reason := validate(s); reason != "" {
		return rerrors.InvalidBranchName{Name: s, Reason: reason}
	}
	return nil
}

const slugMaxScalars = 50

// Slugify derives a candidate branch name from arbitrary text: takes the
// first line, lowercases it, replaces runs of non-alphanumeric characters
// with a single '-', trims leading/trailing '-', and truncates to at most
// 50 Unicode scalar values, preferring to cut at the last '-' boundary
// within that limit.
//
// Slugify is idempotent: Slugify(Slugify(x)) == Slugify(x) whenever
// Slugify(x) is non-empty.
func Slugify(text string) string {
	firstLine := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		firstLine = text[:idx]
	}
	lower := strings.ToLower(firstLine)

	var sb strings.Builder
	inRun := false
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			sb.WriteRune('-')
			inRun = true
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return ""
	}
	return truncateScalars(slug, slugMaxScalars)
}

// truncateScalars truncates s to at most max Unicode scalar values,
// preferring to cut at the last '-' boundary within that limit; if no such
// boundary exists, hard-cuts at exactly max scalars.
func truncateScalars(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := runes[:max]
	lastDash := -1
	for i, r := range cut {
		if r == '-' {
			lastDash = i
		}
	}
	if lastDash > 0 {
		return strings.TrimRight(string(cut[:lastDash]), "-")
	}
	return strings.TrimRight(string(cut), "-")
}
