package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	enc, err := s.EncryptString("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", enc)

	plain, err := s.DecryptString(enc)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestEmptyStringPassesThrough(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	enc, err := s.EncryptString("")
	require.NoError(t, err)
	assert.Empty(t, enc)

	plain, err := s.DecryptString("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestKeyPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	enc, err := s1.EncryptString("token")
	require.NoError(t, err)

	s2, err := Open(dir)
	require.NoError(t, err)
	plain, err := s2.DecryptString(enc)
	require.NoError(t, err)
	assert.Equal(t, "token", plain)
}

func TestDecryptGarbageFails(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.DecryptString("not-base64!!!")
	assert.Error(t, err)
}
