package encrypt_test

import (
	"testing"

	"github.com/mwantia/blockdb/extension/encrypt"
	"github.com/stretchr/testify/require"
)

func TestCipher_SealOpen(t *testing.T) {
	key, err := encrypt.GenerateSecretKey()
	require.NoError(t, err)
	require.Len(t, key, 2*encrypt.KeySize)

	c, err := encrypt.NewCipher(key)
	require.NoError(t, err)

	nonce, sealed, err := c.Seal([]byte(`{"a":1}`), []byte("/users/bob"))
	require.NoError(t, err)
	require.NotContains(t, string(sealed), `"a"`)

	plain, err := c.Open(nonce, sealed, []byte("/users/bob"))
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(plain))

	// Ciphertext is bound to the block path
	_, err = c.Open(nonce, sealed, []byte("/users/alice"))
	require.ErrorIs(t, err, encrypt.ErrAuthenticationTag)
}

func TestCipher_FreshNonces(t *testing.T) {
	key, _ := encrypt.GenerateSecretKey()
	c, err := encrypt.NewCipher(key)
	require.NoError(t, err)

	n1, s1, err := c.Seal([]byte("same"), nil)
	require.NoError(t, err)
	n2, s2, err := c.Seal([]byte("same"), nil)
	require.NoError(t, err)

	require.NotEqual(t, n1, n2)
	require.NotEqual(t, s1, s2)
}

func TestCipher_WrongKey(t *testing.T) {
	k1, _ := encrypt.GenerateSecretKey()
	k2, _ := encrypt.GenerateSecretKey()

	c1, err := encrypt.NewCipher(k1)
	require.NoError(t, err)
	c2, err := encrypt.NewCipher(k2)
	require.NoError(t, err)

	nonce, sealed, err := c1.Seal([]byte("secret"), nil)
	require.NoError(t, err)

	_, err = c2.Open(nonce, sealed, nil)
	require.ErrorIs(t, err, encrypt.ErrAuthenticationTag)

	_, err = c1.Open(nonce[:4], sealed, nil)
	require.ErrorIs(t, err, encrypt.ErrMalformedSealed)
}

func TestNewCipher_InvalidKey(t *testing.T) {
	for _, key := range []string{"", "zz", "0011"} {
		_, err := encrypt.NewCipher(key)
		require.ErrorIs(t, err, encrypt.ErrInvalidKey)
	}
}
