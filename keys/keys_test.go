package keys

import (
	"encoding/pem"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// checkPair makes sure the private key is usable as an SSH host key
func checkPair(t *testing.T, privateKey, publicKey []byte) {
	t.Helper()
	signer, err := ssh.ParsePrivateKey(privateKey)
	require.NoError(t, err)
	assert.NotEmpty(t, signer.PublicKey().Marshal())

	block, _ := pem.Decode(publicKey)
	require.NotNil(t, block)
	assert.Equal(t, "PUBLIC KEY", block.Type)
}

func Test_GeneratesRSAKeys(t *testing.T) {
	privateKey, publicKey, err := GeneratesRSAKeys(2048)
	require.NoError(t, err)
	checkPair(t, privateKey, publicKey)

	_, _, err = GeneratesRSAKeys(1024)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func Test_GeneratesECDSAKeys(t *testing.T) {
	for _, keySize := range []int{256, 384, 521} {
		t.Run(fmt.Sprintf("ECDSAKeySize%d", keySize), func(t *testing.T) {
			privateKey, publicKey, err := GeneratesECDSAKeys(keySize)
			require.NoError(t, err)
			checkPair(t, privateKey, publicKey)
		})
	}

	_, _, err := GeneratesECDSAKeys(224)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func Test_GeneratesED25519Keys(t *testing.T) {
	privateKey, publicKey, err := GeneratesED25519Keys()
	require.NoError(t, err)
	checkPair(t, privateKey, publicKey)
}
