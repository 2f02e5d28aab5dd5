package cipher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCMRoundTrip(t *testing.T) {
	cph, err := NewAESGCMCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)

	sealed, err := cph.Encrypt(`{"email":"mei@example.com","password":"hunter22"}`)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hunter22")

	plain, err := cph.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"email":"mei@example.com","password":"hunter22"}`, plain)
}

func TestAESGCMNoncesDiffer(t *testing.T) {
	cph, err := NewAESGCMCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)

	first, err := cph.Encrypt("payload")
	require.NoError(t, err)
	second, err := cph.Encrypt("payload")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAESGCMRejectsBadKeys(t *testing.T) {
	_, err := NewAESGCMCipher("abcd")
	assert.ErrorContains(t, err, "32 bytes")

	_, err = NewAESGCMCipher("not hex at all")
	assert.ErrorContains(t, err, "hex")
}

func TestAESGCMRejectsTamperedPayload(t *testing.T) {
	cph, err := NewAESGCMCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)

	_, err = cph.Decrypt("bm90IGEgcmVhbCBwYXlsb2FkIGF0IGFsbCwgc29ycnk=")
	assert.Error(t, err)
}

func TestROT13RoundTrip(t *testing.T) {
	cph := new(ROT13Cipher)

	sealed, err := cph.Encrypt("Password123")
	require.NoError(t, err)
	assert.NotEqual(t, "Password123", sealed)

	plain, err := cph.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Password123", plain)
}
