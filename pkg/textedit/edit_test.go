package textedit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rustassist/pkg/textedit"
)

func TestApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		edits []textedit.Edit
		want  string
	}{
		{name: "no_edits", src: "abc", want: "abc"},
		{name: "insert_end", src: "abc", edits: []textedit.Edit{textedit.Insert(3, "d")}, want: "abcd"},
		{name: "insert_start", src: "abc", edits: []textedit.Edit{textedit.Insert(0, "x")}, want: "xabc"},
		{name: "replace", src: "abc", edits: []textedit.Edit{textedit.Replace(1, 2, "XY")}, want: "aXYc"},
		{
			name:  "unordered",
			src:   "abcdef",
			edits: []textedit.Edit{textedit.Insert(6, "!"), textedit.Replace(0, 1, "A")},
			want:  "Abcdef!",
		},
		{
			name:  "same_offset_keeps_order",
			src:   "ab",
			edits: []textedit.Edit{textedit.Insert(1, "1"), textedit.Insert(1, "2")},
			want:  "a12b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := textedit.Apply(tt.src, tt.edits...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_Errors(t *testing.T) {
	t.Parallel()

	_, err := textedit.Apply("abc", textedit.Insert(4, "x"))
	require.ErrorIs(t, err, textedit.ErrOutOfBounds)

	_, err = textedit.Apply("abc", textedit.Replace(2, 1, ""))
	require.ErrorIs(t, err, textedit.ErrOutOfBounds)

	_, err = textedit.Apply("abcdef", textedit.Replace(0, 3, ""), textedit.Replace(2, 4, ""))
	require.ErrorIs(t, err, textedit.ErrOverlap)
}

func TestEdit_IsInsert(t *testing.T) {
	t.Parallel()

	assert.True(t, textedit.Insert(2, "x").IsInsert())
	assert.False(t, textedit.Replace(1, 2, "x").IsInsert())
}

func TestUnifiedDiff(t *testing.T) {
	t.Parallel()

	before := "enum A { One(u32) }\n"
	after := "enum A { One(u32) }\n\nimpl From<u32> for A {}\n"

	diff := textedit.UnifiedDiff("main.rs", before, after)

	assert.True(t, strings.HasPrefix(diff, "--- a/main.rs\n+++ b/main.rs\n"))
	assert.Contains(t, diff, "@@ -1,1 +1,3 @@\n")
	assert.Contains(t, diff, " enum A { One(u32) }\n")
	assert.Contains(t, diff, "+\n")
	assert.Contains(t, diff, "+impl From<u32> for A {}\n")
}

func TestUnifiedDiff_Equal(t *testing.T) {
	t.Parallel()

	assert.Empty(t, textedit.UnifiedDiff("main.rs", "same", "same"))
}

func TestUnifiedDiff_MissingTrailingNewline(t *testing.T) {
	t.Parallel()

	diff := textedit.UnifiedDiff("lib.rs", "a", "a\nb")

	assert.Contains(t, diff, "\\ No newline at end of file")
	assert.Contains(t, diff, "+b\n")
}
