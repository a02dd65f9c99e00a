package globutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	paths []string
}

func (f *fakeLister) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for _, p := range f.paths {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestExtractPrefixLiteralBeforeWildcard(t *testing.T) {
	p := Compile("data/2024/temp_*.nc")
	require.Equal(t, "data/2024/", p.Prefix())
}

func TestExtractPrefixNoWildcard(t *testing.T) {
	p := Compile("data/2024/a.nc")
	require.Equal(t, "data/2024/", p.Prefix())
}

func TestExtractPrefixWildcardInFirstSegment(t *testing.T) {
	p := Compile("*/a.nc")
	require.Equal(t, "", p.Prefix())
}

func TestMatchStarDoesNotCrossSegmentBoundary(t *testing.T) {
	p := Compile("data/*/a.nc")
	require.True(t, p.Match("data/x/a.nc"))
	require.False(t, p.Match("data/x/y/a.nc"))
}

func TestMatchDoubleStarCrossesSegmentBoundaries(t *testing.T) {
	p := Compile("data/**/temp_*.nc")
	require.True(t, p.Match("data/temp_x.nc"))
	require.True(t, p.Match("data/a/temp_x.nc"))
	require.True(t, p.Match("data/a/b/temp_x.nc"))
	require.False(t, p.Match("data//temp_x.nc"))
}

func TestMatchTerminalDoubleStarMatchesEverythingUnderPrefix(t *testing.T) {
	p := Compile("data/**")
	require.True(t, p.Match("data/a.nc"))
	require.True(t, p.Match("data/a/b/c.nc"))
}

func TestMatchQuestionMarkSingleChar(t *testing.T) {
	p := Compile("data/temp_?.nc")
	require.True(t, p.Match("data/temp_1.nc"))
	require.False(t, p.Match("data/temp_12.nc"))
}

func TestMatchCharacterClass(t *testing.T) {
	p := Compile("data/temp_[0-2].nc")
	require.True(t, p.Match("data/temp_1.nc"))
	require.False(t, p.Match("data/temp_9.nc"))
}

func TestMatchNegatedCharacterClass(t *testing.T) {
	p := Compile("data/temp_[!0-2].nc")
	require.False(t, p.Match("data/temp_1.nc"))
	require.True(t, p.Match("data/temp_9.nc"))
}

func TestMatchUnclosedBracketIsLiteral(t *testing.T) {
	p := Compile("data/temp_[9.nc")
	require.True(t, p.Match("data/temp_[9.nc"))
}

func TestGlobFiltersListedCandidates(t *testing.T) {
	lister := &fakeLister{paths: []string{
		"data/a/temp_1.nc",
		"data/a/temp_2.nc",
		"data/a/other.nc",
		"other/temp_1.nc",
	}}

	matches, err := Glob(context.Background(), lister, "data/**/temp_*.nc")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"data/a/temp_1.nc", "data/a/temp_2.nc"}, matches)
}
