package client

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/dittotasks/pkg/document"
)

func TestSyncErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("sync: %w", newError(Connection, io.ErrUnexpectedEOF))

	assert.ErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, Connection, KindOf(err))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "connection error: unexpected EOF", newError(Connection, io.ErrUnexpectedEOF).Error())
}

func TestFromLoadError(t *testing.T) {
	cases := map[error]ErrorKind{
		document.ErrFileNotFound:   FileNotFound,
		document.ErrFileUnreadable: FileUnreadable,
		document.ErrFileUnparsable: FileUnparsable,
	}
	for kind, want := range cases {
		err := &document.LoadError{Kind: kind, Path: "x", Err: errors.New("cause")}
		assert.Equal(t, want, fromLoadError(err).Kind, kind.Error())
	}
}
