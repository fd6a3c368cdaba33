package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/session"
)

func newStore(t *testing.T) (*session.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := session.NewStore(path, zap.NewNop())
	require.NoError(t, err)
	return store, path
}

func TestStore_RoundTrip(t *testing.T) {
	store, path := newStore(t)

	_, ok := store.Load()
	assert.False(t, ok)

	sess := session.Session{Token: "tok-1234567890abcdefghij", UserID: "42"}
	require.NoError(t, store.Save(sess))

	got, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, sess, got)

	// A fresh store picks the session back up from disk.
	reloaded, err := session.NewStore(path, zap.NewNop())
	require.NoError(t, err)
	got, ok = reloaded.Load()
	require.True(t, ok)
	assert.Equal(t, sess, got)
}

func TestStore_RejectsPartialSession(t *testing.T) {
	store, _ := newStore(t)

	assert.Error(t, store.Save(session.Session{Token: "only-token-no-user-id-x"}))
	assert.Error(t, store.Save(session.Session{UserID: "7"}))

	_, ok := store.Load()
	assert.False(t, ok)
}

func TestStore_ClearDestroysBothSlots(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, store.Save(session.Session{Token: "tok-1234567890abcdefghij", UserID: "42"}))

	store.Clear()

	_, ok := store.Load()
	assert.False(t, ok)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_IgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := session.NewStore(path, zap.NewNop())
	require.NoError(t, err)
	_, ok := store.Load()
	assert.False(t, ok)
}
