package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/utils/crypto"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		plaintext string
	}{
		{"short secret gets padded", "s3cret", "conversation context"},
		{"long secret gets truncated", "a-very-long-secret-that-exceeds-thirty-two-bytes", "slots: patient=Ana"},
		{"empty plaintext", "s3cret", ""},
		{"unicode plaintext", "s3cret", "Consulta para João às 10h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := crypto.EncryptString(tt.secret, tt.plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, ciphertext)

			decrypted, err := crypto.DecryptString(tt.secret, ciphertext)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	first, err := crypto.EncryptString("s3cret", "same input")
	require.NoError(t, err)
	second, err := crypto.EncryptString("s3cret", "same input")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "random nonce must vary the ciphertext")
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	ciphertext, err := crypto.EncryptString("right-key", "sensitive")
	require.NoError(t, err)

	_, err = crypto.DecryptString("wrong-key", ciphertext)
	assert.Error(t, err)
}

func TestEmptySecretIsRejected(t *testing.T) {
	_, err := crypto.EncryptString("", "data")
	assert.Error(t, err)

	_, err = crypto.DecryptString("", "data")
	assert.Error(t, err)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	_, err := crypto.DecryptString("s3cret", "not base64 !!!")
	assert.Error(t, err)

	// Valid base64 but shorter than a GCM nonce.
	_, err = crypto.DecryptString("s3cret", "c2hvcnQ=")
	assert.Error(t, err)
}
