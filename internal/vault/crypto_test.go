package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dws/control-plane/internal/apierr"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ct, err := encrypt(testKey, "0xOwner", "hello world")
	require.NoError(t, err)
	assert.NotEmpty(t, ct)

	pt, err := decrypt(testKey, "0xOwner", ct)
	require.NoError(t, err)
	assert.Equal(t, "hello world", pt)
}

func TestEncryptIsRandomizedPerCall(t *testing.T) {
	ct1, err := encrypt(testKey, "0xOwner", "same")
	require.NoError(t, err)
	ct2, err := encrypt(testKey, "0xOwner", "same")
	require.NoError(t, err)
	assert.NotEqual(t, ct1, ct2)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	_, err := decrypt(testKey, "0xOwner", "dG9vc2hvcnQ=")
	require.Error(t, err)
	assert.Equal(t, apierr.Integrity, apierr.KindOf(err))
}

func TestDecryptWrongOwnerFails(t *testing.T) {
	ct, err := encrypt(testKey, "0xOwnerA", "secret")
	require.NoError(t, err)

	_, err = decrypt(testKey, "0xOwnerB", ct)
	require.Error(t, err)
	assert.Equal(t, apierr.Integrity, apierr.KindOf(err))
}
