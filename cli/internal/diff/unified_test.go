package diff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinLines(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	return strings.Join(texts, "\n") + "\n"
}

// applyPatch parses patch and applies its single file to old.
func applyPatch(t *testing.T, patch []byte, old string) string {
	t.Helper()
	files, _, err := gitdiff.Parse(bytes.NewReader(patch))
	require.NoError(t, err)
	require.Len(t, files, 1)
	var out bytes.Buffer
	require.NoError(t, gitdiff.Apply(&out, strings.NewReader(old), files[0]))
	return out.String()
}

func TestPatch_Unified(t *testing.T) {
	t.Parallel()
	oldT := []string{"a", "b", "c"}
	newT := []string{"a", "x", "c"}
	p := Patch{Path: "src/main.go", Hunks: assembleHunks(oldT, newT, DefaultContext)}
	got, err := p.Unified()
	require.NoError(t, err)
	want := "diff --git a/src/main.go b/src/main.go\n" +
		"--- a/src/main.go\n" +
		"+++ b/src/main.go\n" +
		"@@ -1,3 +1,3 @@\n" +
		" a\n" +
		"-b\n" +
		"+x\n" +
		" c\n"
	assert.Equal(t, want, string(got))
}

func TestPatch_Unified_appliesCleanly(t *testing.T) {
	t.Parallel()
	oldT := numbered(50)
	newT := replace(numbered(50), 2, 17, 18, 40)
	newT = append(newT[:25], append([]string{"new 1", "new 2"}, newT[26:]...)...)
	for _, context := range []int{0, 3} {
		p := Patch{Path: "f.txt", Hunks: assembleHunks(oldT, newT, context)}
		patch, err := p.Unified()
		require.NoError(t, err)
		assert.Equal(t, joinLines(newT), applyPatch(t, patch, joinLines(oldT)), "context %d", context)
	}
}

func TestPatch_Unified_newFile(t *testing.T) {
	t.Parallel()
	p := Patch{Path: "n.txt", OldAbsent: true, Hunks: assembleHunks(nil, []string{"x", "y"}, 3)}
	got, err := p.Unified()
	require.NoError(t, err)
	s := string(got)
	assert.Contains(t, s, "new file mode 100644\n")
	assert.Contains(t, s, "--- /dev/null\n")
	assert.Contains(t, s, "+++ b/n.txt\n")
	assert.Contains(t, s, "@@ -0,0 +1,2 @@\n+x\n+y\n")
}

func TestPatch_Unified_requiresPath(t *testing.T) {
	t.Parallel()
	_, err := Patch{}.Unified()
	assert.Error(t, err)
}

func TestPatch_Unified_binary(t *testing.T) {
	t.Parallel()
	got, err := Patch{Path: "img.png", Binary: true}.Unified()
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/img.png b/img.png\nBinary files a/img.png and b/img.png differ\n", string(got))

	got, err = Patch{Path: "img.png", Binary: true, OldAbsent: true}.Unified()
	require.NoError(t, err)
	assert.Contains(t, string(got), "Binary files /dev/null and b/img.png differ\n")
}

func TestPatch_Unified_noChanges(t *testing.T) {
	t.Parallel()
	got, err := Patch{Path: "same.txt"}.Unified()
	require.NoError(t, err)
	assert.Empty(t, got)
}
