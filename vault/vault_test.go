package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFields() []Field {
	return []Field{
		{Label: "Venue key", Public: true, Value: "pk-12345"},
		{Label: "Venue secret", Value: "sk-secret"},
		{Label: "Venue passphrase", Value: "open sesame"},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "credentials"), nil)
}

func TestWriteReadProfile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteProfile("default", "hunter2", testFields()))

	got, err := s.ReadProfile("default", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testFields(), got)
}

func TestReadProfileNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteProfile("default", "hunter2", testFields()))

	_, err := s.ReadProfile("missing", "hunter2")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestReadProfileNoStore(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.ReadProfile("default", "hunter2")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestWrongPasswordYieldsGarbageNotError(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteProfile("default", "hunter2", testFields()))

	got, err := s.ReadProfile("default", "wrong-password")
	require.NoError(t, err)

	// Public field is untouched, encrypted fields come back as garbage.
	assert.Equal(t, "pk-12345", got[0].Value)
	assert.NotEqual(t, "sk-secret", got[1].Value)
}

func TestPublicFieldsStoredPlaintext(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteProfile("default", "hunter2", testFields()))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, "version: 1")
	assert.Contains(t, content, "Venue key: pk-12345")
	assert.NotContains(t, content, "sk-secret")
	assert.NotContains(t, content, "open sesame")
	assert.Contains(t, content, "Venue secret (encrypted): ")
}

func TestRewriteReplacesWholeProfile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteProfile("default", "pw1", testFields()))
	require.NoError(t, s.WriteProfile("other", "pw2", []Field{
		{Label: "Venue key", Public: true, Value: "other-key"},
		{Label: "Venue secret", Value: "other-secret"},
	}))

	replacement := []Field{
		{Label: "Venue key", Public: true, Value: "pk-99999"},
		{Label: "Venue secret", Value: "sk-new"},
	}
	require.NoError(t, s.WriteProfile("default", "pw3", replacement))

	got, err := s.ReadProfile("default", "pw3")
	require.NoError(t, err)
	assert.Equal(t, replacement, got)

	// The prior record is fully dropped, including its old key.
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "pk-12345")

	// Untouched profiles survive the rewrite under their own passwords.
	other, err := s.ReadProfile("other", "pw2")
	require.NoError(t, err)
	assert.Equal(t, "other-secret", other[1].Value)
}

func TestDuplicateProfileRejectedOnRead(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteProfile("default", "pw", testFields()))

	// Hand-edit the store to duplicate the profile block.
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	block := strings.SplitN(string(raw), "\n", 2)[1] // drop version line
	require.NoError(t, os.WriteFile(s.Path(), []byte(string(raw)+block), 0600))

	_, err = s.ReadProfile("default", "pw")
	var dup *DuplicateProfileError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "default", dup.Name)

	// And a write into the corrupted store refuses too.
	err = s.WriteProfile("third", "pw", testFields())
	assert.ErrorAs(t, err, &dup)
}

func TestProfileNames(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	names, err := s.ProfileNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.WriteProfile("a", "pw", testFields()))
	require.NoError(t, s.WriteProfile("b", "pw", testFields()))

	names, err = s.ProfileNames()
	require.NoError(t, err)
	// Most recently written profile sits first in the file.
	assert.Equal(t, []string{"b", "a"}, names)
}

func TestStorePermissions(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.WriteProfile("default", "pw", testFields()))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestBadProfileName(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.Error(t, s.WriteProfile("", "pw", testFields()))
	assert.Error(t, s.WriteProfile("has]bracket", "pw", testFields()))
}
