package archive

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/medallion-map/backend/internal/parser"
	"github.com/medallion-map/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestArchive(t *testing.T) *RecordArchive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "records.duckdb"), Options{Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestPutAndRecords(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)

	set, err := parser.ParseRecords(strings.NewReader(testutil.TripCSV))
	require.NoError(t, err)
	require.NoError(t, a.Put(ctx, "file-1", "trip.csv", set))

	got, err := a.Records(ctx, "file-1")
	require.NoError(t, err)

	assert.Equal(t, set.Header, got.Header)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "Paris", got.Records[0].Location)
	assert.Equal(t, 0, got.Records[0].Index)
	assert.Equal(t, 2, got.Records[0].Line)
	assert.Equal(t, 3.0, got.Records[0].Duration)
	assert.Equal(t, "1903 - 1904", got.Records[1].YearRange())
}

func TestPut_KeepsIssuesAndBadCoordinates(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)

	set, err := parser.ParseRecords(strings.NewReader("location,longitude,latitude\nNowhere,east,10\n"))
	require.NoError(t, err)
	require.NotEmpty(t, set.Issues)
	require.NoError(t, a.Put(ctx, "bad", "bad.csv", set))

	got, err := a.Records(ctx, "bad")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.True(t, math.IsNaN(got.Records[0].Longitude))
	assert.Equal(t, set.Issues, got.Issues)
}

func TestPut_Replaces(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)

	first, _ := parser.ParseRecords(strings.NewReader(testutil.TripCSV))
	second, _ := parser.ParseRecords(strings.NewReader("location,longitude,latitude\nOslo,10.7,59.9\n"))

	require.NoError(t, a.Put(ctx, "f", "a.csv", first))
	require.NoError(t, a.Put(ctx, "f", "b.csv", second))

	got, err := a.Records(ctx, "f")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Oslo", got.Records[0].Location)
}

func TestRecords_Unknown(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.Records(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotArchived)
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)

	set, _ := parser.ParseRecords(strings.NewReader(testutil.TripCSV))
	require.NoError(t, a.Put(ctx, "old", "old.csv", set))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, a.Put(ctx, "new", "new.csv", set))

	recent, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].FileID)
	assert.Equal(t, 2, recent[0].RecordCount)
	assert.Equal(t, 3.0, recent[0].MaxDuration)

	limited, err := a.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	a := openTestArchive(t)

	set, _ := parser.ParseRecords(strings.NewReader(testutil.TripCSV))
	require.NoError(t, a.Put(ctx, "f", "a.csv", set))
	require.NoError(t, a.Delete(ctx, "f"))
	require.NoError(t, a.Delete(ctx, "f"))

	_, err := a.Records(ctx, "f")
	assert.ErrorIs(t, err, ErrNotArchived)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.duckdb")

	a, err := Open(path, Options{})
	require.NoError(t, err)
	set, _ := parser.ParseRecords(strings.NewReader(testutil.TripCSV))
	require.NoError(t, a.Put(ctx, "f", "a.csv", set))
	require.NoError(t, a.Close())

	b, err := Open(path, Options{})
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Records(ctx, "f")
	require.NoError(t, err)
	assert.Len(t, got.Records, 2)
}
