package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotasks/pkg/document"
	"github.com/marmos91/dittotasks/pkg/envelope"
)

const password = "correct horse"

func TestSealOpenRequest(t *testing.T) {
	ts := time.Date(2024, 2, 29, 12, 0, 0, 123, time.UTC)
	req := UpdateDatabase([]byte{1, 2, 3}, ts)

	sealed, err := SealRequest(req, password)
	require.NoError(t, err)

	got, err := OpenRequest(sealed, password)
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.True(t, ts.Equal(got.Timestamp()))
}

func TestMinTimestampSurvivesWire(t *testing.T) {
	sealed, err := SealResponse(ModifiedDate(document.MinTimestamp), password)
	require.NoError(t, err)

	resp, err := OpenResponse(sealed, password)
	require.NoError(t, err)
	assert.Equal(t, ResponseModifiedDate, resp.Kind)
	assert.True(t, document.MinTimestamp.Equal(resp.Timestamp()))
}

func TestOpenWithWrongPassword(t *testing.T) {
	sealed, err := SealResponse(DatabaseUpdated(), password)
	require.NoError(t, err)

	_, err = OpenResponse(sealed, "wrong")
	assert.ErrorIs(t, err, envelope.ErrAuthentication)
}

func TestOpenRejectsUnknownKind(t *testing.T) {
	sealed, err := SealRequest(Request{Kind: 42}, password)
	require.NoError(t, err)

	_, err = OpenRequest(sealed, password)
	assert.ErrorIs(t, err, envelope.ErrPayload)

	sealed, err = SealResponse(Response{Kind: 0}, password)
	require.NoError(t, err)
	_, err = OpenResponse(sealed, password)
	assert.ErrorIs(t, err, envelope.ErrPayload)
}

func TestOpenGarbage(t *testing.T) {
	_, err := OpenRequest([]byte("nope"), password)
	assert.True(t, errors.Is(err, envelope.ErrMalformed))
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "UpdateDatabase", RequestUpdateDatabase.String())
	assert.Equal(t, "DatabaseChanged", ResponseDatabaseChanged.String())
	assert.Equal(t, "RequestKind(9)", RequestKind(9).String())
}
