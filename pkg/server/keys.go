package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

const rsaKeyBits = 1024

// generateKeys creates the server's session-encryption key pair and the
// DER encoding of its public half, which is sent to clients during
// authentication. Both are generated once at startup and never change.
func generateKeys() (*rsa.PrivateKey, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("could not generate RSA key pair: %w", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("could not encode public key: %w", err)
	}

	return key, der, nil
}
