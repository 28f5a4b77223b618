package cryptox

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncrypt_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 11, 15, 16, 17, 1024, 64 * 1024}

	for _, n := range sizes {
		plaintext := make([]byte, n)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		s, err := Encrypt(plaintext)
		require.NoError(t, err)
		assert.Len(t, s.Ciphertext, n+Overhead)
		assert.Len(t, s.Nonce, NonceSize)

		got, err := Decrypt(s.Ciphertext, s.Nonce, s.Key)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plaintext, got), "size %d", n)
	}
}

func TestEncrypt_HelloWorldSize(t *testing.T) {
	s, err := Encrypt([]byte("hello world"))
	require.NoError(t, err)
	assert.Len(t, s.Ciphertext, 27)
}

func TestEncrypt_FreshKeyAndNonceEveryCall(t *testing.T) {
	const n = 200
	seen := make(map[string]struct{}, n)
	nonces := make(map[string]struct{}, n)
	plaintext := []byte("same logical upload")

	for i := 0; i < n; i++ {
		s, err := Encrypt(plaintext)
		require.NoError(t, err)

		pair := string(s.Key[:]) + string(s.Nonce)
		_, dup := seen[pair]
		require.False(t, dup, "key/nonce pair repeated at call %d", i)
		seen[pair] = struct{}{}
		nonces[string(s.Nonce)] = struct{}{}
	}
	assert.Len(t, nonces, n)
}

func TestDecrypt_BitFlipIsIntegrityError(t *testing.T) {
	s, err := Encrypt([]byte("tamper with me"))
	require.NoError(t, err)

	for i := 0; i < len(s.Ciphertext)*8; i++ {
		ct := bytes.Clone(s.Ciphertext)
		ct[i/8] ^= 1 << (i % 8)

		got, err := Decrypt(ct, s.Nonce, s.Key)
		require.ErrorIs(t, err, common.ErrIntegrity, "ciphertext bit %d", i)
		require.Nil(t, got)
	}

	for i := 0; i < NonceSize*8; i++ {
		nonce := bytes.Clone(s.Nonce)
		nonce[i/8] ^= 1 << (i % 8)

		_, err := Decrypt(s.Ciphertext, nonce, s.Key)
		require.ErrorIs(t, err, common.ErrIntegrity, "nonce bit %d", i)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	s, err := Encrypt([]byte("payload"))
	require.NoError(t, err)

	other, err := Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = Decrypt(s.Ciphertext, s.Nonce, other.Key)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestDecrypt_BadNonceLengthIsValidation(t *testing.T) {
	s, err := Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = Decrypt(s.Ciphertext, s.Nonce[:8], s.Key)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.False(t, errors.Is(err, common.ErrIntegrity))
}

func TestExportImportKey(t *testing.T) {
	s, err := Encrypt([]byte("x"))
	require.NoError(t, err)

	exported := ExportKey(s.Key)
	assert.Len(t, exported, 44)

	imported, err := ImportKey(exported)
	require.NoError(t, err)
	assert.Equal(t, s.Key, imported)
	assert.Equal(t, exported, ExportKey(imported))
}

func TestImportKey_Invalid(t *testing.T) {
	tests := map[string]string{
		"not base64": "!!!",
		"too short":  "AAAA",
		"unpadded":   "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ImportKey(in)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestMaterial_RoundTrip(t *testing.T) {
	s, err := Encrypt([]byte("material"))
	require.NoError(t, err)

	k, n := s.Material()

	key, err := ImportKey(k)
	require.NoError(t, err)
	nonce, err := DecodeNonce(n)
	require.NoError(t, err)

	got, err := Decrypt(s.Ciphertext, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, "material", string(got))
}

func TestSealed_Wipe(t *testing.T) {
	s, err := Encrypt([]byte("x"))
	require.NoError(t, err)
	s.Wipe()
	assert.Equal(t, Key{}, s.Key)
}
