package session_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() *session.Session {
	return &session.Session{
		Token: "header.payload.signature",
		User: domain.PublicUser{
			ID:        uuid.New(),
			Email:     "jane@example.com",
			FirstName: "Jane",
			LastName:  "Doe",
			Role:      domain.RoleUser,
		},
		Expiry: time.UnixMilli(time.Now().Add(30 * time.Minute).UnixMilli()),
	}
}

func TestStores_RoundTrip(t *testing.T) {
	stores := map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"file":   session.NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json")),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			got, err := store.Load()
			require.NoError(t, err)
			assert.Nil(t, got, "empty store is logged out")

			want := sampleSession()
			require.NoError(t, store.Save(want))

			got, err = store.Load()
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, want.Token, got.Token)
			assert.Equal(t, want.User.ID, got.User.ID)
			assert.Equal(t, want.User.Email, got.User.Email)
			assert.True(t, want.Expiry.Equal(got.Expiry))

			require.NoError(t, store.Clear())
			got, err = store.Load()
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, store.Clear(), "clearing an empty store is fine")
		})
	}
}

func TestMemoryStore_PartialOrCorruptIsLoggedOut(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]string
	}{
		{name: "token only", entries: map[string]string{session.KeyToken: "t"}},
		{name: "missing expiry", entries: map[string]string{session.KeyToken: "t", session.KeyUser: `{"email":"a@b.c"}`}},
		{name: "bad expiry", entries: map[string]string{session.KeyToken: "t", session.KeyUser: `{}`, session.KeyExpiry: "soon"}},
		{name: "bad user json", entries: map[string]string{session.KeyToken: "t", session.KeyUser: `{`, session.KeyExpiry: "1700000000000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewMemoryStore()
			for k, v := range tt.entries {
				store.Set(k, v)
			}

			got, err := store.Load()
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Empty(t, store.Entries(), "partial sets are cleared on load")
		})
	}
}

func TestMemoryStore_WritesAllThreeKeys(t *testing.T) {
	store := session.NewMemoryStore()
	s := sampleSession()
	require.NoError(t, store.Save(s))

	entries := store.Entries()
	assert.Len(t, entries, 3)
	assert.Equal(t, s.Token, entries[session.KeyToken])
	assert.Contains(t, entries[session.KeyUser], s.User.Email)
	assert.NotEmpty(t, entries[session.KeyExpiry])
}

func TestFileStore(t *testing.T) {
	t.Run("file is private", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store := session.NewFileStore(path)
		require.NoError(t, store.Save(sampleSession()))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var raw map[string]string
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.ElementsMatch(t, []string{session.KeyToken, session.KeyUser, session.KeyExpiry}, keys(raw))
	})

	t.Run("corrupt file is cleared", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		got, err := session.NewFileStore(path).Load()
		require.NoError(t, err)
		assert.Nil(t, got)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("partial file is cleared", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"token":"abc"}`), 0o600))

		got, err := session.NewFileStore(path).Load()
		require.NoError(t, err)
		assert.Nil(t, got)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("save replaces previous session", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store := session.NewFileStore(path)
		require.NoError(t, store.Save(sampleSession()))

		next := sampleSession()
		next.Token = "second"
		require.NoError(t, store.Save(next))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "second", got.Token)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temp files left behind")
	})
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
