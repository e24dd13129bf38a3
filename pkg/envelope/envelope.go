// Package envelope implements the password based authenticated encryption
// every sync message travels in.
//
// A key is derived from the shared password with Argon2id and a fresh random
// salt, then the payload is sealed with XChaCha20-Poly1305 under a fresh
// random nonce. Each message carries its own salt and nonce, so messages are
// independently verifiable and no session state exists.
package envelope

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id cost parameters. Changing any of them makes data sealed under the
// old values impossible to open.
const (
	argonTime    = 2
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1

	// KeySize is the derived key length in bytes.
	KeySize = chacha20poly1305.KeySize

	// SaltSize is the length of the random KDF salt in bytes.
	SaltSize = 16

	// NonceSize is the XChaCha20-Poly1305 nonce length in bytes.
	NonceSize = chacha20poly1305.NonceSizeX
)

var (
	// ErrAuthentication is returned when a ciphertext cannot be opened:
	// the password is wrong or the bytes were tampered with. The two causes
	// are indistinguishable by construction.
	ErrAuthentication = errors.New("decryption failed: wrong password or corrupted data")

	// ErrMalformed is returned when salt or nonce have the wrong length.
	ErrMalformed = errors.New("malformed envelope")
)

// Sealed is the output of Encrypt.
type Sealed struct {
	Ciphertext []byte
	Salt       [SaltSize]byte
	Nonce      [NonceSize]byte
}

// DeriveKey stretches password into a KeySize key with Argon2id.
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, KeySize)
}

// Encrypt seals plaintext under a key derived from password. Salt and nonce
// are fresh for every call, so equal plaintexts never produce equal output.
func Encrypt(plaintext []byte, password string) (Sealed, error) {
	var s Sealed
	if _, err := rand.Read(s.Salt[:]); err != nil {
		return Sealed{}, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(s.Nonce[:]); err != nil {
		return Sealed{}, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(DeriveKey(password, s.Salt[:]))
	if err != nil {
		return Sealed{}, fmt.Errorf("init cipher: %w", err)
	}
	s.Ciphertext = aead.Seal(nil, s.Nonce[:], plaintext, nil)
	return s, nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any failure to
// authenticate yields ErrAuthentication and no plaintext.
func Decrypt(ciphertext []byte, password string, salt, nonce []byte) ([]byte, error) {
	if len(salt) != SaltSize || len(nonce) != NonceSize {
		return nil, ErrMalformed
	}

	aead, err := chacha20poly1305.NewX(DeriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// Open is Decrypt applied to a Sealed value.
func (s Sealed) Open(password string) ([]byte, error) {
	return Decrypt(s.Ciphertext, password, s.Salt[:], s.Nonce[:])
}
