package linediff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revdiff/cli/internal/erruser"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"single no terminator", "a", []string{"a"}},
		{"single with terminator", "a\n", []string{"a"}},
		{"blank line", "\n", []string{""}},
		{"two blank lines", "\n\n", []string{"", ""}},
		{"lf", "a\nb\nc\n", []string{"a", "b", "c"}},
		{"crlf", "a\r\nb\r\nc\r\n", []string{"a", "b", "c"}},
		{"mixed", "a\r\nb\nc", []string{"a", "b", "c"}},
		{"lone cr kept", "a\rb\n", []string{"a\rb"}},
		{"trailing cr without lf kept", "a\r", []string{"a\r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in)
			assert.Equal(t, tt.want, Texts(got))
			for i, l := range got {
				assert.Equal(t, i+1, l.Index)
			}
		})
	}
}

func TestSplitBytes_invalidUTF8(t *testing.T) {
	_, err := SplitBytes([]byte{'a', 0xff, '\n'})
	require.Error(t, err)
	assert.True(t, errors.Is(err, erruser.ErrUTF8Decode))

	lines, err := SplitBytes([]byte("héllo\nwörld\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"héllo", "wörld"}, Texts(lines))
}

func TestFromTexts(t *testing.T) {
	lines := FromTexts([]string{"x", "y"})
	assert.Equal(t, []Line{{Index: 1, Text: "x"}, {Index: 2, Text: "y"}}, lines)
}
