package state

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	assert.Len(t, key, SymmetricKeySize)

	payloads := [][]byte{
		{},
		[]byte("hello, world"),
		{0x00, 0xff, 0x10, 0x80},
		make([]byte, 4096),
	}
	_, err = rand.Read(payloads[3])
	require.NoError(t, err)

	for _, msg := range payloads {
		ct, err := Encrypt(msg, key)
		require.NoError(t, err)
		pt, err := Decrypt(ct, key)
		require.NoError(t, err)
		assert.Equal(t, msg, pt)
	}
}

func TestEncryptFreshIV(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	a, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	other, err := GenerateSymmetricKey()
	require.NoError(t, err)

	ct, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)
	_, err = Decrypt(ct, other)
	assert.ErrorIs(t, err, ErrDecrypt)
	assert.True(t, IsCrypto(err))
}

func TestDecryptMalformed(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)

	_, err = Decrypt("not base64!!", key)
	assert.True(t, IsCrypto(err))

	_, err = Decrypt(base64.StdEncoding.EncodeToString([]byte("short")), key)
	assert.ErrorIs(t, err, ErrDecrypt)

	ct, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[IVSize] ^= 0x01
	_, err = Decrypt(base64.StdEncoding.EncodeToString(raw), key)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Encrypt([]byte("secret"), key[:16])
	assert.True(t, IsCrypto(err))
}

func TestWrapUnwrapKey(t *testing.T) {
	priv, err := GenerateKeypair()
	require.NoError(t, err)
	other, err := GenerateKeypair()
	require.NoError(t, err)

	key, err := GenerateSymmetricKey()
	require.NoError(t, err)

	wrapped, err := WrapKey(key, priv.Public())
	require.NoError(t, err)

	unwrapped, err := UnwrapKey(wrapped, priv)
	require.NoError(t, err)
	assert.Equal(t, key, unwrapped)

	_, err = UnwrapKey(wrapped, other)
	assert.ErrorIs(t, err, ErrDecrypt)
	assert.True(t, IsCrypto(err))

	_, err = UnwrapKey("", priv)
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = WrapKey(key, nil)
	assert.Error(t, err)
}

func TestSerializePublic(t *testing.T) {
	priv, err := GenerateKeypair()
	require.NoError(t, err)

	text, err := SerializePublic(priv.Public())
	require.NoError(t, err)
	assert.Contains(t, text, "-----BEGIN PUBLIC KEY-----")

	pub, err := DeserializePublic(text)
	require.NoError(t, err)
	assert.True(t, pub.Equal(priv.Public()))

	_, err = DeserializePublic("garbage")
	assert.Error(t, err)

	privText, err := priv.MarshalText()
	require.NoError(t, err)
	_, err = DeserializePublic(string(privText))
	assert.Error(t, err, "a private key is not a public key")
}
