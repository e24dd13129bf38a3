package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sealed, err := Encrypt([]byte("hello world"), "secret")
	require.NoError(t, err)

	plaintext, err := sealed.Open("secret")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(plaintext))
}

func TestDecryptWrongPassword(t *testing.T) {
	sealed, err := Encrypt([]byte("hello"), "secret")
	require.NoError(t, err)

	plaintext, err := Decrypt(sealed.Ciphertext, "guess", sealed.Salt[:], sealed.Nonce[:])
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Nil(t, plaintext)
}

func TestDecryptDetectsTampering(t *testing.T) {
	sealed, err := Encrypt([]byte("hello"), "secret")
	require.NoError(t, err)

	t.Run("ciphertext", func(t *testing.T) {
		s := sealed
		s.Ciphertext = append([]byte(nil), sealed.Ciphertext...)
		s.Ciphertext[0] ^= 0x01
		_, err := s.Open("secret")
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("nonce", func(t *testing.T) {
		s := sealed
		s.Nonce[3] ^= 0x80
		_, err := s.Open("secret")
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("salt", func(t *testing.T) {
		s := sealed
		s.Salt[0] ^= 0xff
		_, err := s.Open("secret")
		assert.ErrorIs(t, err, ErrAuthentication)
	})
}

func TestDecryptMalformedSizes(t *testing.T) {
	_, err := Decrypt([]byte("x"), "p", make([]byte, 3), make([]byte, NonceSize))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncryptUsesFreshSaltAndNonce(t *testing.T) {
	a, err := Encrypt([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), "pw")
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DeriveKey("pw", salt)
	k2 := DeriveKey("pw", salt)
	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, DeriveKey("pw2", salt))
}

type note struct {
	Title string
	Body  []byte
	Count uint32
}

type wider struct {
	Title string
	Body  []byte
	Count uint32
	Extra string
}

type checked struct {
	Kind uint32
}

func (c *checked) Validate() error {
	if c.Kind != 7 {
		return assert.AnError
	}
	return nil
}

func TestEncryptedValueRoundTrip(t *testing.T) {
	in := note{Title: "t", Body: []byte{1, 2, 3}, Count: 9}
	e, err := EncryptValue(in, "pw")
	require.NoError(t, err)

	out, err := e.Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncryptedValueErrorsAreDistinguishable(t *testing.T) {
	e, err := EncryptValue(note{Title: "t"}, "pw")
	require.NoError(t, err)

	_, err = e.Decrypt("wrong")
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.NotErrorIs(t, err, ErrPayload)

	wrongType := Encrypted[wider]{Sealed: e.Sealed}
	_, err = wrongType.Decrypt("pw")
	assert.ErrorIs(t, err, ErrPayload)
	assert.NotErrorIs(t, err, ErrAuthentication)
}

func TestEncryptedValueValidates(t *testing.T) {
	bad, err := EncryptValue(checked{Kind: 1}, "pw")
	require.NoError(t, err)
	_, err = bad.Decrypt("pw")
	assert.ErrorIs(t, err, ErrPayload)

	good, err := EncryptValue(checked{Kind: 7}, "pw")
	require.NoError(t, err)
	v, err := good.Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v.Kind)
}

func TestEnvelopeWireRoundTrip(t *testing.T) {
	e, err := EncryptValue(note{Title: "wire"}, "pw")
	require.NoError(t, err)

	data, err := e.MarshalBinary()
	require.NoError(t, err)

	var decoded Encrypted[note]
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, e.Sealed, decoded.Sealed)

	v, err := decoded.Decrypt("pw")
	require.NoError(t, err)
	assert.Equal(t, "wire", v.Title)
}

func TestEnvelopeUnmarshalRejectsShortOrLying(t *testing.T) {
	var e Encrypted[note]
	assert.ErrorIs(t, e.UnmarshalBinary([]byte{1, 2, 3}), ErrMalformed)

	data := make([]byte, SaltSize+NonceSize+4)
	data[SaltSize+NonceSize] = 0x7f // claims a huge ciphertext
	assert.ErrorIs(t, e.UnmarshalBinary(data), ErrMalformed)
}

func TestPropertyEncryptionRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := note{
			Title: rapid.String().Draw(t, "title"),
			Body:  rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(t, "body"),
			Count: rapid.Uint32().Draw(t, "count"),
		}
		password := rapid.StringN(1, 32, -1).Draw(t, "password")

		e, err := EncryptValue(in, password)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		out, err := e.Decrypt(password)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if out.Title != in.Title || out.Count != in.Count || string(out.Body) != string(in.Body) {
			t.Fatalf("got %+v, want %+v", out, in)
		}

		if _, err := e.Decrypt(password + "x"); err == nil {
			t.Fatalf("wrong password decrypted")
		}
	})
}
