package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Put(KeyDetectedCity, "Athens"))
	require.NoError(t, s.Put(KeyPinnedChats, []string{"r1", "r2"}))

	s2, err := Open(path)
	require.NoError(t, err)

	var city string
	require.True(t, s2.Get(KeyDetectedCity, &city))
	assert.Equal(t, "Athens", city)

	var pinned []string
	require.True(t, s2.Get(KeyPinnedChats, &pinned))
	assert.Equal(t, []string{"r1", "r2"}, pinned)
}

func TestGetMissingKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	var out string
	assert.False(t, s.Get("nope", &out))
}

func TestGetWrongShapeReturnsFalse(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	require.NoError(t, s.Put(KeyDetectedCity, "Athens"))

	var out int
	assert.False(t, s.Get(KeyDetectedCity, &out))
}

func TestCorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	var out string
	assert.False(t, s.Get(KeyDetectedCity, &out))

	// The store is still writable after discarding the corrupt file.
	require.NoError(t, s.Put(KeyDetectedCity, "Patras"))
	s2, err := Open(path)
	require.NoError(t, err)
	require.True(t, s2.Get(KeyDetectedCity, &out))
	assert.Equal(t, "Patras", out)
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(KeyDetectedCity, "Athens"))
	require.NoError(t, s.Delete(KeyDetectedCity))

	var out string
	assert.False(t, s.Get(KeyDetectedCity, &out))

	s2, err := Open(path)
	require.NoError(t, err)
	assert.False(t, s2.Get(KeyDetectedCity, &out))
}
