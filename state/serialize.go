package state

import (
	"crypto/rsa"
	"encoding/pem"
	"fmt"

	"go.step.sm/crypto/pemutil"
)

func (k *PrivateKey) MarshalText() ([]byte, error) {
	block, err := pemutil.Serialize(k.key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}

func (k *PublicKey) MarshalText() ([]byte, error) {
	block, err := pemutil.Serialize(k.key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}

func (k *PrivateKey) UnmarshalText(text []byte) error {
	parsed, err := parsePEM(text)
	if err != nil {
		return err
	}
	rk, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("expected an RSA private key, got %T", parsed)
	}
	k.key = rk
	return nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := parsePEM(text)
	if err != nil {
		return err
	}
	rk, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("expected an RSA public key, got %T", parsed)
	}
	k.key = rk
	return nil
}
