package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/ports"
)

func TestBuildContainerRejectsMissingCredentials(t *testing.T) {
	chdirForTest(t, t.TempDir())
	for _, name := range []string{"BOT_TOKEN", "TG_CHAT_ID", "TG_CHANNEL_CHAT_ID", "GMAIL_USER", "GMAIL_APP_PASSWORD"} {
		t.Setenv(name, "")
	}

	container, err := BuildContainer()
	require.NoError(t, err)

	err = container.Invoke(func(*config.Config) {})
	require.Error(t, err)
	assert.ErrorIs(t, dig.RootCause(err), config.ErrMissingRequired)
}

func TestBuildCLIContainerOffline(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"last_dt_iso":"2025-06-02T10:30:00+00:00","last_uid":7}`), 0o644))

	container, err := BuildCLIContainer(&CLIFlags{StateFile: statePath})
	require.NoError(t, err)

	err = container.Invoke(func(pipeline *core.Pipeline, cursor *core.CursorService, repo ports.CursorRepository) {
		assert.NotNil(t, pipeline)
		assert.Equal(t, statePath, repo.Location())

		c, ok := cursor.Get()
		require.True(t, ok)
		assert.Equal(t, uint32(7), c.UID)
	})
	require.NoError(t, err)
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
