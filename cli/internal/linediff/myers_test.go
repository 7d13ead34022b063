package linediff

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apply replays s against oldTexts/newTexts and returns the reconstructed new
// side, failing the test if an Equal edit pairs lines that differ.
func apply(t *testing.T, s Script, oldTexts, newTexts []string) []string {
	t.Helper()
	var out []string
	for _, e := range s {
		switch e.Op {
		case OpEqual:
			for k := 0; k < e.Old.Len(); k++ {
				require.Equal(t, oldTexts[e.Old.Start+k], newTexts[e.New.Start+k], "equal edit pairs different lines")
				out = append(out, oldTexts[e.Old.Start+k])
			}
		case OpInsert:
			out = append(out, newTexts[e.New.Start:e.New.End]...)
		}
	}
	return out
}

// oracleCost returns the minimal number of inserted plus deleted lines as
// computed by diffmatchpatch with no deadline (which disables its non-optimal
// half-match heuristic).
func oracleCost(oldTexts, newTexts []string) int {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	join := func(lines []string) string {
		var b strings.Builder
		for _, l := range lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
		return b.String()
	}
	ra, rb, _ := dmp.DiffLinesToRunes(join(oldTexts), join(newTexts))
	cost := 0
	for _, d := range dmp.DiffMainRunes(ra, rb, false) {
		if d.Type != diffmatchpatch.DiffEqual {
			cost += utf8.RuneCountInString(d.Text)
		}
	}
	return cost
}

func TestDiff_scenario(t *testing.T) {
	s := DiffTexts([]string{"a", "b", "c"}, []string{"a", "x", "c"})
	want := Script{
		{Op: OpEqual, Old: Range{0, 1}, New: Range{0, 1}},
		{Op: OpDelete, Old: Range{1, 2}, New: Range{1, 1}},
		{Op: OpInsert, Old: Range{2, 2}, New: Range{1, 2}},
		{Op: OpEqual, Old: Range{2, 3}, New: Range{2, 3}},
	}
	assert.Equal(t, want, s)
}

func TestDiff_degenerate(t *testing.T) {
	lines := []string{"a", "b", "c"}

	t.Run("empty old", func(t *testing.T) {
		s := DiffTexts(nil, lines)
		assert.Equal(t, Script{{Op: OpInsert, Old: Range{0, 0}, New: Range{0, 3}}}, s)
	})
	t.Run("empty new", func(t *testing.T) {
		s := DiffTexts(lines, nil)
		assert.Equal(t, Script{{Op: OpDelete, Old: Range{0, 3}, New: Range{0, 0}}}, s)
	})
	t.Run("identical", func(t *testing.T) {
		s := DiffTexts(lines, lines)
		assert.Equal(t, Script{{Op: OpEqual, Old: Range{0, 3}, New: Range{0, 3}}}, s)
	})
	t.Run("both empty", func(t *testing.T) {
		assert.Empty(t, DiffTexts(nil, nil))
	})
	t.Run("nothing in common", func(t *testing.T) {
		s := DiffTexts([]string{"a", "b"}, []string{"x", "y", "z"})
		assert.Equal(t, Script{
			{Op: OpDelete, Old: Range{0, 2}, New: Range{0, 0}},
			{Op: OpInsert, Old: Range{2, 2}, New: Range{0, 3}},
		}, s)
	})
}

func TestDiff_prefersCommonPrefix(t *testing.T) {
	// Both "delete the first a" and "delete the second a" are minimal; the
	// greedy prefix match keeps the first a and deletes the second.
	s := DiffTexts([]string{"a", "a", "b"}, []string{"a", "b"})
	assert.Equal(t, Script{
		{Op: OpEqual, Old: Range{0, 1}, New: Range{0, 1}},
		{Op: OpDelete, Old: Range{1, 2}, New: Range{1, 1}},
		{Op: OpEqual, Old: Range{2, 3}, New: Range{1, 2}},
	}, s)
}

func TestDiff_lineEndingsIgnored(t *testing.T) {
	s := Diff(Split("a\nb\nc\n"), Split("a\r\nb\r\nc\r\n"))
	assert.Equal(t, 0, s.Cost())
	require.Len(t, s, 1)
	assert.Equal(t, OpEqual, s[0].Op)
}

func TestDiff_randomMinimalAndDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []string{"a", "b", "c", "d"}
	gen := func() []string {
		n := rng.Intn(14)
		out := make([]string, n)
		for i := range out {
			out[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return out
	}
	for iter := 0; iter < 600; iter++ {
		oldTexts, newTexts := gen(), gen()
		name := fmt.Sprintf("%d:%v->%v", iter, oldTexts, newTexts)

		s := DiffTexts(oldTexts, newTexts)
		require.NoError(t, s.Validate(len(oldTexts), len(newTexts)), name)
		got := apply(t, s, oldTexts, newTexts)
		if len(newTexts) == 0 {
			require.Empty(t, got, name)
		} else {
			require.Equal(t, newTexts, got, name)
		}
		require.Equal(t, oracleCost(oldTexts, newTexts), s.Cost(), name)
		require.Equal(t, s, DiffTexts(oldTexts, newTexts), name)
	}
}

func TestDiff_largeFileFewChanges(t *testing.T) {
	const n = 20000
	oldTexts := make([]string, n)
	for i := range oldTexts {
		oldTexts[i] = fmt.Sprintf("line %d", i)
	}
	newTexts := append([]string(nil), oldTexts...)
	newTexts[100] = "changed 100"
	newTexts[n/2] = "changed middle"
	newTexts = append(newTexts[:15000], append([]string{"inserted"}, newTexts[15000:]...)...)

	s := DiffTexts(oldTexts, newTexts)
	require.NoError(t, s.Validate(len(oldTexts), len(newTexts)))
	assert.Equal(t, 2, s.Deleted())
	assert.Equal(t, 3, s.Inserted())
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "equal", OpEqual.String())
	assert.Equal(t, "insert", OpInsert.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "Op(9)", Op(9).String())
}

func TestScript_Validate_rejectsGaps(t *testing.T) {
	s := Script{
		{Op: OpEqual, Old: Range{0, 1}, New: Range{0, 1}},
		{Op: OpEqual, Old: Range{2, 3}, New: Range{1, 2}},
	}
	assert.Error(t, s.Validate(3, 2))
	assert.Error(t, Script{{Op: OpInsert, Old: Range{0, 0}, New: Range{0, 1}}, {Op: OpDelete, Old: Range{0, 1}, New: Range{1, 1}}}.Validate(1, 1))
}
