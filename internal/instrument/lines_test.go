package instrument

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineAt(t *testing.T) {
	src := "a = 1;\n\nfoo();\nbar"

	tests := []struct {
		name   string
		offset int
		want   int
	}{
		{name: "start of file", offset: 0, want: 1},
		{name: "newline belongs to its line", offset: 6, want: 1},
		{name: "empty line", offset: 7, want: 2},
		{name: "third line", offset: 8, want: 3},
		{name: "last line", offset: 15, want: 4},
		{name: "past the end", offset: 500, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, LineAt(src, tt.offset))
		})
	}
}

func TestLineAt_EdgeCases(t *testing.T) {
	require.Equal(t, 1, LineAt("", 0))
	require.Equal(t, 1, LineAt("", 10))
	require.Equal(t, 1, LineAt("x\n", 2), "trailing newline does not open a line")
	require.Equal(t, 2, LineAt("x\r\ny", 3), "carriage return counts as a byte of its line")
}

func TestLineIndex_AgreesWithLineAt(t *testing.T) {
	sources := []string{
		"",
		"5;",
		"// comment\n\"x\" + \"y\";\n",
		"a\n\n\nb\nccc\n",
		"\n\n\n",
		"héllo\nwörld",
	}

	for _, src := range sources {
		idx := NewLineIndex(src)
		for offset := 0; offset <= len(src)+2; offset++ {
			require.Equal(t, LineAt(src, offset), idx.Line(offset), "src %q offset %d", src, offset)
		}
	}
}
