package protocol

import (
	"github.com/marmos91/dittotasks/pkg/envelope"
)

// SealRequest encrypts req and returns its transport bytes.
func SealRequest(req Request, password string) ([]byte, error) {
	return seal(req, password)
}

// OpenRequest decodes and decrypts a request. Errors wrap
// envelope.ErrMalformed, envelope.ErrAuthentication or envelope.ErrPayload.
func OpenRequest(data []byte, password string) (Request, error) {
	return open[Request](data, password)
}

// SealResponse encrypts resp and returns its transport bytes.
func SealResponse(resp Response, password string) ([]byte, error) {
	return seal(resp, password)
}

// OpenResponse decodes and decrypts a response.
func OpenResponse(data []byte, password string) (Response, error) {
	return open[Response](data, password)
}

func seal[T any](msg T, password string) ([]byte, error) {
	enc, err := envelope.EncryptValue(msg, password)
	if err != nil {
		return nil, err
	}
	return enc.MarshalBinary()
}

func open[T any](data []byte, password string) (T, error) {
	var enc envelope.Encrypted[T]
	if err := enc.UnmarshalBinary(data); err != nil {
		var zero T
		return zero, err
	}
	return enc.Decrypt(password)
}
