package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rustassist/pkg/fixture"
	"github.com/Sumatoshi-tech/rustassist/pkg/textedit"
)

func TestResolveCursor(t *testing.T) {
	t.Parallel()

	const src = "enum A {\n    One(u32),\n}\n"

	text, offset, err := resolveCursor(src, proposeOptions{offset: 13})
	require.NoError(t, err)
	assert.Equal(t, src, text)
	assert.Equal(t, 13, offset)

	_, offset, err = resolveCursor(src, proposeOptions{offset: noOffset, at: "2:5"})
	require.NoError(t, err)
	assert.Equal(t, 13, offset)

	text, offset, err = resolveCursor("enum A { $0One(u32) }", proposeOptions{offset: noOffset})
	require.NoError(t, err)
	assert.Equal(t, "enum A { One(u32) }", text)
	assert.Equal(t, 9, offset)
}

func TestResolveCursor_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := resolveCursor("x", proposeOptions{offset: 5})
	require.ErrorIs(t, err, ErrOffsetRange)

	_, _, err = resolveCursor("$0a$0", proposeOptions{offset: noOffset})
	require.ErrorIs(t, err, fixture.ErrMultipleCursors)

	_, _, err = resolveCursor("x", proposeOptions{offset: noOffset, at: "9:1"})
	require.ErrorIs(t, err, textedit.ErrBadPosition)
}

func TestParsePosition(t *testing.T) {
	t.Parallel()

	pos, err := parsePosition("12:3")
	require.NoError(t, err)
	assert.Equal(t, textedit.Position{Line: 12, Column: 3}, pos)

	for _, bad := range []string{"12", "a:1", "1:"} {
		_, err = parsePosition(bad)
		require.ErrorIs(t, err, ErrBadCursorFormat, bad)
	}
}
