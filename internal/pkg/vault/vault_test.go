package vault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, 32)
}

func TestSealOpen(t *testing.T) {
	v, err := New(testKey())
	require.NoError(t, err)
	require.True(t, v.Enabled())

	sealed, err := v.Seal("sk-live-123456", "music")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk-live")

	plain, err := v.Open(sealed, "music")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-123456", plain)

	again, err := v.Seal("sk-live-123456", "music")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestOpenRejectsWrongOwnerAndGarbage(t *testing.T) {
	v, err := New(testKey())
	require.NoError(t, err)
	sealed, err := v.Seal("secret", "music")
	require.NoError(t, err)

	_, err = v.Open(sealed, "video")
	assert.Error(t, err)

	_, err = v.Open("not base64!", "music")
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = v.Open("AAAA", "music")
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestVaultWithoutKey(t *testing.T) {
	v, err := New(nil)
	require.NoError(t, err)
	assert.False(t, v.Enabled())

	_, err = v.Seal("x", "y")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = New([]byte("short"))
	assert.Error(t, err)
}

func TestHint(t *testing.T) {
	assert.Equal(t, "****", Hint("abc"))
	assert.Equal(t, "…3456", Hint("sk-live-123456"))
}
