package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock(t *testing.T, times ...time.Time) {
	t.Helper()
	prev := now
	i := 0
	now = func() time.Time {
		ts := times[min(i, len(times)-1)]
		i++
		return ts
	}
	t.Cleanup(func() { now = prev })
}

func TestNewDocumentStartsAtMinTimestamp(t *testing.T) {
	doc := New()
	assert.True(t, doc.LastModified().Equal(MinTimestamp))
	assert.Equal(t, int64(-1<<63), doc.LastModified().UnixNano())
}

func TestModifyAlwaysAdvancesTimestamp(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)
	withClock(t, t1, t2)

	doc := New()
	doc.Modify(func(db *Database) {
		db.Insert(NewProjectID(), NewProject("inbox", "#fff"))
	})
	assert.Equal(t, t1, doc.LastModified())

	doc.Modify(func(*Database) {})
	assert.Equal(t, t2, doc.LastModified(), "no-op modify still bumps")
}

func TestModifyStoresUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	withClock(t, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))

	doc := New()
	doc.Modify(func(*Database) {})
	assert.Equal(t, time.UTC, doc.LastModified().Location())
}

func TestSnapshotMatchesToBinary(t *testing.T) {
	withClock(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	doc := New()
	doc.Modify(func(db *Database) {
		db.Insert(NewProjectID(), NewProject("a", "#000"))
	})

	data, ts, err := doc.Snapshot()
	require.NoError(t, err)
	bin, err := doc.ToBinary()
	require.NoError(t, err)
	assert.Equal(t, bin, data)
	assert.Equal(t, doc.LastModified(), ts)
}
