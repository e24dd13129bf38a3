package envelope

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ErrPayload is returned when a ciphertext authenticates but the plaintext
// does not decode as the expected type. It points at protocol or version
// drift rather than a wrong password.
var ErrPayload = errors.New("decrypted payload has unexpected shape")

// Encrypted is a sealed, XDR encoded value of type T. The type parameter
// binds the ciphertext to its payload type so it cannot be opened as
// something else by accident.
type Encrypted[T any] struct {
	Sealed
}

// EncryptValue encodes value with XDR and seals it.
func EncryptValue[T any](value T, password string) (Encrypted[T], error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &value); err != nil {
		return Encrypted[T]{}, fmt.Errorf("encode payload: %w", err)
	}
	s, err := Encrypt(buf.Bytes(), password)
	if err != nil {
		return Encrypted[T]{}, err
	}
	return Encrypted[T]{Sealed: s}, nil
}

// Decrypt opens the envelope and decodes the payload. It fails with
// ErrAuthentication or ErrPayload.
func (e Encrypted[T]) Decrypt(password string) (T, error) {
	var zero T
	plaintext, err := e.Open(password)
	if err != nil {
		return zero, err
	}

	var value T
	r := bytes.NewReader(plaintext)
	if err := decodeStrict(r, &value); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	if v, ok := any(&value).(validator); ok {
		if err := v.Validate(); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrPayload, err)
		}
	}
	return value, nil
}

// validator is implemented by payload types that can reject values which
// decode cleanly but are not meaningful, such as an unknown message kind.
type validator interface {
	Validate() error
}

func decodeStrict(r *bytes.Reader, v any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("decode panic: %v", p)
		}
	}()
	if _, err := xdr.Unmarshal(r, v); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}
	return nil
}

// wireEnvelope is the on-the-wire layout of an Encrypted value.
type wireEnvelope struct {
	Salt       [SaltSize]byte
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// MarshalBinary encodes the envelope for transport.
func (e Encrypted[T]) MarshalBinary() ([]byte, error) {
	w := wireEnvelope{Salt: e.Salt, Nonce: e.Nonce, Ciphertext: e.Ciphertext}
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &w); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an envelope produced by MarshalBinary. Failures
// are reported as ErrMalformed.
func (e *Encrypted[T]) UnmarshalBinary(data []byte) error {
	const header = SaltSize + NonceSize + 4
	if len(data) < header {
		return fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	if n := binary.BigEndian.Uint32(data[SaltSize+NonceSize:]); uint64(n) > uint64(len(data)-header) {
		return fmt.Errorf("%w: ciphertext length %d exceeds frame", ErrMalformed, n)
	}

	var w wireEnvelope
	if err := decodeStrict(bytes.NewReader(data), &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	e.Salt, e.Nonce, e.Ciphertext = w.Salt, w.Nonce, w.Ciphertext
	return nil
}
