// Package keys generates private keys for the SSH host key of the SFTP server.
package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrInvalidKeySize is returned for key sizes the generators don't offer
var ErrInvalidKeySize = errors.New("invalid key size")

// GeneratesRSAKeys generates a new RSA key pair and returns the private and public keys in PEM format.
func GeneratesRSAKeys(bitSize int) (privateKeyFile, publicKeyFile []byte, err error) {
	switch bitSize {
	case 2048, 3072, 4096:
	default:
		return nil, nil, fmt.Errorf("%w: RSA %d", ErrInvalidKeySize, bitSize)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bitSize)
	if err != nil {
		return nil, nil, fmt.Errorf("error generating RSA key: %w", err)
	}
	return encodePair("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey), &privateKey.PublicKey)
}

// GeneratesECDSAKeys generates a new ECDSA key pair and returns the private and public keys in PEM format.
func GeneratesECDSAKeys(bitSize int) (privateKeyFile, publicKeyFile []byte, err error) {
	var curve elliptic.Curve
	switch bitSize {
	case 256:
		curve = elliptic.P256()
	case 384:
		curve = elliptic.P384()
	case 521:
		curve = elliptic.P521()
	default:
		return nil, nil, fmt.Errorf("%w: ECDSA %d", ErrInvalidKeySize, bitSize)
	}

	privateKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("error generating ECDSA key: %w", err)
	}
	der, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding ECDSA key: %w", err)
	}
	return encodePair("EC PRIVATE KEY", der, &privateKey.PublicKey)
}

// GeneratesED25519Keys generates a new EdDSA key pair and returns the private and public keys in PEM format.
func GeneratesED25519Keys() (privateKeyFile, publicKeyFile []byte, err error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("error generating ED25519 key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding ED25519 key: %w", err)
	}
	return encodePair("PRIVATE KEY", der, publicKey)
}

func encodePair(privateType string, privateDER []byte, publicKey any) ([]byte, []byte, error) {
	publicDER, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding public key: %w", err)
	}
	privateKeyFile := pem.EncodeToMemory(&pem.Block{Type: privateType, Bytes: privateDER})
	publicKeyFile := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	return privateKeyFile, publicKeyFile, nil
}
