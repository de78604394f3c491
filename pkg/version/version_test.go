package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	Version, Commit, Date = "dev", unknown, unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	assert.Equal(t, "v0.3.0", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)
	assert.Equal(t, "rustassist v0.3.0 (commit: abc123, built: 2026-01-02T03:04:05Z)", String())
}

func TestApply_KeepsLinkerValues(t *testing.T) {
	Version, Commit, Date = "v9.9.9", "linked", "today"

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})

	assert.Equal(t, "v9.9.9", Version)
	assert.Equal(t, "linked", Commit)
	assert.Equal(t, "today", Date)
}
