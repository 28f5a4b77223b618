// Package cryptox holds the client-side file cipher and the password
// hashing used for share links.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/helix/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// Overhead is the GCM authentication tag appended to every ciphertext.
	Overhead = 16
)

// Key is a 256-bit symmetric file key.
type Key [KeySize]byte

// Sealed is the result of one Encrypt call.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Key        Key
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random key and a
// fresh random 12-byte nonce.
//
// Each call draws new key material, so retries of the same logical upload
// never reuse a (key, nonce) pair. The returned ciphertext is
// len(plaintext)+Overhead bytes long and carries the authentication tag.
//
// Parameters:
//   - plaintext: the bytes to protect. An empty slice is allowed.
//
// Returns:
//   - *Sealed: ciphertext, nonce and the key needed to open it.
//   - error: wraps common.ErrEncryptionFailed if the cipher cannot be built.
//
// Example:
//
//	s, err := cryptox.Encrypt([]byte("hello world"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(len(s.Ciphertext)) // 27
func Encrypt(plaintext []byte) (*Sealed, error) {
	var key Key
	copy(key[:], common.GenerateRandByteArray(KeySize))

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryptionFailed, err)
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	return &Sealed{Ciphertext: ciphertext, Nonce: nonce, Key: key}, nil
}

// Decrypt opens ciphertext produced by Encrypt.
//
// A nonce of the wrong length is a common.ErrValidation. Any authentication
// failure, whether from tampered bytes, a wrong key or a wrong nonce, is
// reported as common.ErrIntegrity and no plaintext is returned.
func Decrypt(ciphertext, nonce []byte, key Key) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", common.ErrValidation, NonceSize, len(nonce))
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrIntegrity
	}
	return plaintext, nil
}

// ExportKey encodes key as standard padded base64. The result is always
// 44 characters.
func ExportKey(key Key) string {
	return base64.StdEncoding.EncodeToString(key[:])
}

// ImportKey parses the output of ExportKey.
func ImportKey(s string) (Key, error) {
	var key Key
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("%w: key is not base64: %w", common.ErrValidation, err)
	}
	if len(b) != KeySize {
		return key, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrValidation, KeySize, len(b))
	}
	copy(key[:], b)
	common.WipeByteArray(b)
	return key, nil
}

// EncodeNonce and DecodeNonce move nonces through the same base64 form as
// keys.
func EncodeNonce(nonce []byte) string {
	return base64.StdEncoding.EncodeToString(nonce)
}

func DecodeNonce(s string) ([]byte, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce is not base64: %w", common.ErrValidation, err)
	}
	if len(b) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", common.ErrValidation, NonceSize, len(b))
	}
	return b, nil
}

// Material exports the key and nonce of s for the metadata index.
func (s *Sealed) Material() (key, nonce string) {
	return ExportKey(s.Key), EncodeNonce(s.Nonce)
}

// Wipe zeroes the key held by s.
func (s *Sealed) Wipe() {
	common.WipeByteArray(s.Key[:])
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
