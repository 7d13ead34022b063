package diff

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revdiff/cli/internal/linediff"
)

func assembleHunks(oldTexts, newTexts []string, context int) []Hunk {
	o, n := linediff.FromTexts(oldTexts), linediff.FromTexts(newTexts)
	return AssembleHunks(o, n, linediff.Diff(o, n), context)
}

// numbered returns "l1".."ln".
func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("l%d", i+1)
	}
	return out
}

// replace returns a copy of texts with the given 1-based lines changed.
func replace(texts []string, lines ...int) []string {
	out := append([]string(nil), texts...)
	for _, n := range lines {
		out[n-1] = out[n-1] + "'"
	}
	return out
}

func TestAssembleHunks_scenario(t *testing.T) {
	t.Parallel()
	hunks := assembleHunks([]string{"a", "b", "c"}, []string{"a", "x", "c"}, DefaultContext)
	require.Len(t, hunks, 1)
	h := hunks[0]
	assert.Equal(t, "@@ -1,3 +1,3 @@", h.Header)
	assert.Equal(t, []Line{
		{OldLine: 1, NewLine: 1, Content: "a", Type: LineContext},
		{OldLine: 2, Content: "b", Type: LineRemoved},
		{NewLine: 2, Content: "x", Type: LineAdded},
		{OldLine: 3, NewLine: 3, Content: "c", Type: LineContext},
	}, h.Lines)
}

func TestAssembleHunks_zeroContext(t *testing.T) {
	t.Parallel()
	hunks := assembleHunks([]string{"a", "b", "c"}, []string{"a", "x", "c"}, 0)
	require.Len(t, hunks, 1)
	assert.Equal(t, "@@ -2,1 +2,1 @@", hunks[0].Header)
	assert.Len(t, hunks[0].Lines, 2)

	// Negative context behaves like zero.
	assert.Equal(t, hunks, assembleHunks([]string{"a", "b", "c"}, []string{"a", "x", "c"}, -4))
}

func TestAssembleHunks_headers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		oldT    []string
		newT    []string
		context int
		want    []string
	}{
		{"new file", nil, []string{"x", "y"}, 3, []string{"@@ -0,0 +1,2 @@"}},
		{"deleted file", []string{"x", "y", "z"}, nil, 3, []string{"@@ -1,3 +0,0 @@"}},
		{"pure insert", []string{"a", "b"}, []string{"a", "n", "b"}, 0, []string{"@@ -1,0 +2,1 @@"}},
		{"pure delete", []string{"a", "n", "b"}, []string{"a", "b"}, 0, []string{"@@ -2,1 +1,0 @@"}},
		{"insert at top", []string{"a"}, []string{"n", "a"}, 0, []string{"@@ -0,0 +1,1 @@"}},
		{"merged by shared context", numbered(20), replace(numbered(20), 5, 12), 3, []string{"@@ -2,14 +2,14 @@"}},
		{"split past 2*context", numbered(20), replace(numbered(20), 5, 13), 3, []string{"@@ -2,7 +2,7 @@", "@@ -10,7 +10,7 @@"}},
		{"context clipped at ends", numbered(4), replace(numbered(4), 1, 4), 3, []string{"@@ -1,4 +1,4 @@"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			hunks := assembleHunks(tc.oldT, tc.newT, tc.context)
			var got []string
			for _, h := range hunks {
				got = append(got, h.Header)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAssembleHunks_identical(t *testing.T) {
	t.Parallel()
	assert.Empty(t, assembleHunks(numbered(5), numbered(5), 3))
	assert.Empty(t, assembleHunks(nil, nil, 3))
}

func TestAssembleHunks_countsMatchLines(t *testing.T) {
	t.Parallel()
	oldT := numbered(60)
	newT := replace(numbered(60), 3, 4, 20, 41, 58)
	newT = append(newT[:30], append([]string{"inserted"}, newT[30:]...)...)
	for _, context := range []int{0, 1, 3, 10} {
		hunks := assembleHunks(oldT, newT, context)
		require.NotEmpty(t, hunks)
		flat := Flatten(hunks)
		regrouped, err := Regroup(flat)
		require.NoError(t, err, "context %d", context)
		assert.Equal(t, hunks, regrouped)
		for i := 1; i < len(hunks); i++ {
			prevEnd := hunks[i-1].OldStart + hunks[i-1].OldCount
			assert.GreaterOrEqual(t, hunks[i].OldStart, prevEnd, "hunks overlap")
		}
	}
}

func TestFlatten(t *testing.T) {
	t.Parallel()
	hunks := assembleHunks(numbered(20), replace(numbered(20), 5, 13), 1)
	flat := Flatten(hunks)
	require.Len(t, flat, len(hunks[0].Lines)+len(hunks[1].Lines)+2)
	assert.Equal(t, Line{Content: hunks[0].Header, Type: LineHeader}, flat[0])
	assert.Equal(t, LineHeader, flat[len(hunks[0].Lines)+1].Type)
	assert.Empty(t, Flatten(nil))
}
