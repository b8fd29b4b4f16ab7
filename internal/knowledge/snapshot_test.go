package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "legalDb.txt"))
	require.Error(t, err)
}

func TestHolderStartsUnavailable(t *testing.T) {
	h := NewHolder(filepath.Join(t.TempDir(), "legalDb.txt"), zap.NewNop())
	require.False(t, h.Current().Available())
	require.Error(t, h.Reload(context.Background()))
	require.False(t, h.Current().Available())
}

func TestHolderReloadSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legalDb.txt")
	require.NoError(t, os.WriteFile(path, []byte("Livre II - Chapitre 1"), 0o600))
	h := NewHolder(path, zap.NewNop())
	require.NoError(t, h.Reload(context.Background()))

	first := h.Current()
	require.True(t, first.Available())
	require.Equal(t, "Livre II - Chapitre 1", first.Text())

	require.NoError(t, os.WriteFile(path, []byte("Livre III"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	require.Equal(t, "Livre III", h.Current().Text())
	require.Equal(t, "Livre II - Chapitre 1", first.Text(), "a snapshot already handed out never changes")
}

func TestHolderFailedReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legalDb.txt")
	require.NoError(t, os.WriteFile(path, []byte("Livre I"), 0o600))
	h := NewHolder(path, zap.NewNop())
	require.NoError(t, h.Reload(context.Background()))
	require.NoError(t, os.Remove(path))

	require.Error(t, h.Reload(context.Background()))
	require.Equal(t, "Livre I", h.Current().Text())
}

func TestEmptyFileIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legalDb.txt")
	require.NoError(t, os.WriteFile(path, []byte(" \n"), 0o600))
	h := NewHolder(path, zap.NewNop())
	require.NoError(t, h.Reload(context.Background()))
	require.False(t, h.Current().Available())
}

func TestStaticHolder(t *testing.T) {
	require.True(t, NewStaticHolder(NewSnapshot("texte")).Current().Available())
	require.False(t, NewStaticHolder(Snapshot{}).Current().Available())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legalDb.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))
	h := NewHolder(path, zap.NewNop())
	require.NoError(t, h.Reload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("v2"), 0o600)
		return h.Current().Text() == "v2"
	}, 5*time.Second, 100*time.Millisecond)
}
