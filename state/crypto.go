package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"go.step.sm/crypto/keyutil"
	"go.step.sm/crypto/pemutil"
	"golang.org/x/crypto/hkdf"
)

const (
	RSAKeyBits       = 2048
	SymmetricKeySize = 32
	IVSize           = aes.BlockSize
	TagSize          = sha256.Size
)

var kdfInfo = []byte("weft message v1")

type PrivateKey struct {
	key *rsa.PrivateKey
}

type PublicKey struct {
	key *rsa.PublicKey
}

// GenerateKeypair creates a 2048-bit RSA key with e = 65537
func GenerateKeypair() (*PrivateKey, error) {
	k, err := keyutil.GenerateKey("RSA", "", RSAKeyBits)
	if err != nil {
		return nil, err
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", k)
	}
	return &PrivateKey{rk}, nil
}

func (k *PrivateKey) Public() *PublicKey {
	return &PublicKey{&k.key.PublicKey}
}

func (k *PublicKey) Equal(o *PublicKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.key.Equal(o.key)
}

func SerializePublic(k *PublicKey) (string, error) {
	text, err := k.MarshalText()
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func DeserializePublic(text string) (*PublicKey, error) {
	k := &PublicKey{}
	if err := k.UnmarshalText([]byte(text)); err != nil {
		return nil, err
	}
	return k, nil
}

func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// deriveKeys splits the message key into a cipher key and a mac key
func deriveKeys(key []byte) (encKey, macKey []byte, err error) {
	if len(key) != SymmetricKeySize {
		return nil, nil, fmt.Errorf("symmetric key must be %d bytes, got %d", SymmetricKeySize, len(key))
	}
	out := make([]byte, 2*SymmetricKeySize)
	if _, err = io.ReadFull(hkdf.New(sha256.New, key, nil, kdfInfo), out); err != nil {
		return nil, nil, err
	}
	return out[:SymmetricKeySize], out[SymmetricKeySize:], nil
}

// Encrypt seals msg with AES-256-CFB under a fresh IV. The output is base64(iv || ciphertext || tag), where
// the cipher and HMAC-SHA256 keys are derived from key with HKDF. This is not wire compatible with a plain
// base64(iv || ciphertext) blob under the raw key, peers must run the same codec.
func Encrypt(msg []byte, key []byte) (string, error) {
	encKey, macKey, err := deriveKeys(key)
	if err != nil {
		return "", Crypto("encrypt", err)
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", Crypto("encrypt", err)
	}
	out := make([]byte, IVSize+len(msg), IVSize+len(msg)+TagSize)
	iv := out[:IVSize]
	if _, err = rand.Read(iv); err != nil {
		return "", Crypto("encrypt", err)
	}
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out[IVSize:], msg)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(out)
	out = mac.Sum(out)
	return base64.StdEncoding.EncodeToString(out), nil
}

func Decrypt(text string, key []byte) ([]byte, error) {
	encKey, macKey, err := deriveKeys(key)
	if err != nil {
		return nil, Crypto("decrypt", err)
	}
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, Crypto("decrypt", fmt.Errorf("%w: %w", ErrDecrypt, err))
	}
	if len(data) < IVSize+TagSize {
		return nil, Crypto("decrypt", fmt.Errorf("%w: ciphertext too short", ErrDecrypt))
	}
	body, tag := data[:len(data)-TagSize], data[len(data)-TagSize:]

	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, Crypto("decrypt", fmt.Errorf("%w: authentication tag mismatch", ErrDecrypt))
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, Crypto("decrypt", err)
	}
	plain := make([]byte, len(body)-IVSize)
	cipher.NewCFBDecrypter(block, body[:IVSize]).XORKeyStream(plain, body[IVSize:])
	return plain, nil
}

// WrapKey encrypts a symmetric key for the holder of pub using RSA-OAEP with SHA-256
func WrapKey(key []byte, pub *PublicKey) (string, error) {
	if pub == nil || pub.key == nil {
		return "", Crypto("wrap key", errors.New("no public key"))
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub.key, key, nil)
	if err != nil {
		return "", Crypto("wrap key", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

func UnwrapKey(text string, priv *PrivateKey) ([]byte, error) {
	if text == "" {
		return nil, Crypto("unwrap key", ErrMissingKey)
	}
	wrapped, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, Crypto("unwrap key", err)
	}
	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv.key, wrapped, nil)
	if err != nil {
		return nil, Crypto("unwrap key", fmt.Errorf("%w: %w", ErrDecrypt, err))
	}
	return key, nil
}

func parsePEM(text []byte) (any, error) {
	return pemutil.ParseKey(text)
}
