package consolidation

import (
	stdjson "encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/saga/config"
	"github.com/xtxerr/saga/internal/errors"
	"github.com/xtxerr/saga/internal/storage/types"
	"github.com/xtxerr/saga/internal/storage/writer"
	sagatest "github.com/xtxerr/saga/internal/testing"
)

// memStore records appended rows in order.
type memStore struct {
	rows    []appended
	flushes int
	fail    error
}

type appended struct {
	kind string
	ts   int64
	row  string
}

func (s *memStore) Append(kind string, ts int64, header, row string) error {
	if s.fail != nil {
		return s.fail
	}
	s.rows = append(s.rows, appended{kind: kind, ts: ts, row: row})
	return nil
}

func (s *memStore) Flush() error {
	s.flushes++
	return nil
}

func (s *memStore) timestamps() []int64 {
	out := make([]int64, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.ts
	}
	return out
}

var epoch = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestEngine(kind *types.Kind, store Store) (*Engine, *sagatest.FakeClock) {
	clock := sagatest.NewFakeClock(epoch)
	return New(kind, store, Config{Clock: clock.Now}), clock
}

func event(n int) types.Fields {
	return types.Fields{"C", "O", "A", fmt.Sprintf("event %d", n)}
}

func TestIngestAssignsIncreasingIDs(t *testing.T) {
	e, clock := newTestEngine(&types.EventKind, &memStore{})
	assert.Equal(t, int64(0), e.LatestID())

	now := clock.Now().UnixMilli()
	first := e.Ingest(now, "h1", "a1", event(1), true)
	// Backwards timestamps do not affect id order.
	second := e.Ingest(now-5000, "h1", "a1", event(2), true)
	third := e.Ingest(now, "h1", "a1", event(3), true)

	assert.Greater(t, first, int64(0))
	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)
	assert.Equal(t, third, e.LatestID())
}

func TestIDSeedDiffersAcrossStartTimes(t *testing.T) {
	a := New(&types.EventKind, &memStore{}, Config{Clock: func() time.Time { return epoch }})
	b := New(&types.EventKind, &memStore{}, Config{Clock: func() time.Time { return epoch.Add(time.Minute) }})

	idA := a.Ingest(epoch.UnixMilli(), "h", "a", event(0), false)
	idB := b.Ingest(epoch.UnixMilli(), "h", "a", event(0), false)
	assert.NotEqual(t, idA, idB)
}

func TestRetentionKeepsMostRecentArrivals(t *testing.T) {
	e, clock := newTestEngine(&types.EventKind, &memStore{})
	base := clock.Now().Add(-time.Hour).UnixMilli()

	var ids []int64
	for i := 0; i < 300; i++ {
		ids = append(ids, e.Ingest(base+int64(i)*1000, "h", "a", event(i), false))
	}

	records := e.Records()
	require.Len(t, records, 256)
	assert.Equal(t, 256, e.Len())

	// Oldest 44 arrivals are gone; the rest remain in timestamp order.
	for i, r := range records {
		assert.Equal(t, ids[44+i], r.ID)
	}
	assert.Equal(t, int64(44), e.Stats().Evictions)
}

func TestEvictionPersistsUnsavedRecords(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.EventKind, store)
	base := clock.Now().Add(-10 * time.Minute).UnixMilli()

	for i := 0; i < 257; i++ {
		e.Ingest(base+int64(i)*1000, "h", "a", event(i), true)
	}

	// The 257th arrival forced out the whole resident window.
	assert.Len(t, store.rows, 256)
	assert.Equal(t, int64(1), e.Stats().ForcedSaves)

	e.SaveDue(true)
	require.Len(t, store.rows, 257)
	for i, r := range store.rows {
		assert.Equal(t, base+int64(i)*1000, r.ts)
		assert.Equal(t, "event", r.kind)
	}
}

func TestEvictionPersistsFutureStampedRecord(t *testing.T) {
	store := &memStore{}
	clock := sagatest.NewFakeClock(epoch)
	e := New(&types.EventKind, store, Config{HistoryDepth: 2, Clock: clock.Now})

	future := clock.Now().Add(time.Hour).UnixMilli()
	e.Ingest(future, "h", "a", event(0), true)
	e.Ingest(future+1, "h", "a", event(1), true)
	e.Ingest(future+2, "h", "a", event(2), true)

	require.Len(t, store.rows, 1)
	assert.Equal(t, future, store.rows[0].ts)
}

func TestSaveDueHoldsBackRecentRecords(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.EventKind, store)
	now := clock.Now().UnixMilli()

	e.Ingest(now-10_000, "h", "a", event(1), true)
	e.Ingest(now-2_000, "h", "a", event(2), true)

	assert.Equal(t, 1, e.SaveDue(false))
	assert.Equal(t, []int64{now - 10_000}, store.timestamps())

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, e.SaveDue(false))
	assert.Equal(t, []int64{now - 10_000, now - 2_000}, store.timestamps())

	// Nothing is ever saved twice.
	assert.Equal(t, 0, e.SaveDue(true))
	assert.Len(t, store.rows, 2)
}

func TestSaveDueWritesInTimestampOrder(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.SensorKind, store)
	now := clock.Now().UnixMilli()

	for _, offset := range []int64{-9000, -30000, -12000, -30000, -7000} {
		e.Ingest(now+offset, "h", "a", types.Fields{"room", "t", "21", "c"}, true)
	}
	e.SaveDue(false)

	assert.Equal(t, []int64{now - 30000, now - 30000, now - 12000, now - 9000, now - 7000}, store.timestamps())
}

func TestLateRecordInSameBatchIsSaved(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.EventKind, store)
	now := clock.Now().UnixMilli()

	e.Ingest(now, "h", "a", event(1), true)
	e.Ingest(now-8000, "h", "a", event(2), true)

	e.SaveDue(false)
	assert.Equal(t, []int64{now - 8000}, store.timestamps())
}

func TestLateArrivalRewindsWatermark(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.EventKind, store)
	now := clock.Now().UnixMilli()

	e.Ingest(now-1000, "h", "a", event(1), true)
	e.SaveDue(false)
	watermark, ok := e.Watermark()
	require.True(t, ok)
	assert.Equal(t, now-6000, watermark)
	assert.Empty(t, store.rows)

	e.Ingest(now-60_000, "h", "a", event(2), true)
	watermark, _ = e.Watermark()
	assert.Equal(t, now-60_000, watermark)
	assert.Equal(t, int64(1), e.Stats().LateArrivals)

	clock.Advance(time.Second)
	e.SaveDue(false)
	assert.Equal(t, []int64{now - 60_000}, store.timestamps())
}

func TestNonPropagatingRecordsAreNeverSaved(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.EventKind, store)
	now := clock.Now().UnixMilli()

	e.Ingest(now-60_000, "h", "a", event(1), false)
	e.SaveDue(true)
	assert.Empty(t, store.rows)
	assert.Equal(t, 1, e.Len())
}

func TestStorageFailureDoesNotRetry(t *testing.T) {
	store := &memStore{fail: fmt.Errorf("disk full")}
	e, clock := newTestEngine(&types.EventKind, store)
	now := clock.Now().UnixMilli()

	e.Ingest(now-60_000, "h", "a", event(1), true)
	e.SaveDue(false)
	assert.Equal(t, int64(1), e.Stats().StorageErrors)

	store.fail = nil
	e.SaveDue(true)
	assert.Empty(t, store.rows)
}

func TestStorageErrorsAreCountedEitherWay(t *testing.T) {
	store := &memStore{fail: errors.Wrapf(errors.ErrStorageWrite, "event.csv")}
	e, clock := newTestEngine(&types.EventKind, store)
	now := clock.Now().UnixMilli()

	e.Ingest(now-60_000, "h", "a", event(1), true)
	e.Ingest(now-59_000, "h", "a", event(2), true)
	e.SaveDue(false)

	stats := e.Stats()
	assert.Equal(t, int64(2), stats.StorageErrors)
	assert.Equal(t, int64(2), stats.Saved)
}

func TestBackgroundRunsOncePerSecond(t *testing.T) {
	e, clock := newTestEngine(&types.EventKind, &memStore{})

	assert.True(t, e.Background(clock.Now()))
	assert.False(t, e.Background(clock.Now().Add(500*time.Millisecond)))

	clock.Advance(time.Second)
	assert.True(t, e.Background(clock.Now()))
	assert.False(t, e.Background(clock.Now().Add(-time.Second)))
}

func TestBackgroundPersistsDueRecords(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.EventKind, store)

	e.Ingest(clock.Now().UnixMilli(), "h", "a", event(1), true)
	e.Background(clock.Now())
	assert.Empty(t, store.rows)

	clock.Advance(7 * time.Second)
	e.Background(clock.Now())
	assert.Len(t, store.rows, 1)
	assert.Positive(t, store.flushes)
}

func decodeItems(t *testing.T, page *Page) [][]interface{} {
	t.Helper()
	var items [][]interface{}
	require.NoError(t, stdjson.Unmarshal(page.Items, &items))
	return items
}

func TestRenderSingleEvent(t *testing.T) {
	e, _ := newTestEngine(&types.EventKind, &memStore{})
	id := e.Ingest(1_000_000, "h1", "a1", types.Fields{"C", "O", "A", "d"}, true)

	page, changed := e.Render(0, 0)
	require.True(t, changed)
	assert.Equal(t, id, page.Latest)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t,
		fmt.Sprintf(`[[1000000,"C","O","A","d","h1","a1",%d]]`, id),
		string(page.Items))
}

func TestRenderNewestFirstAfterSince(t *testing.T) {
	e, _ := newTestEngine(&types.EventKind, &memStore{})
	for _, ts := range []int64{5000, 1000, 3000, 4000, 2000} {
		e.Ingest(ts, "h", "a", event(int(ts)), false)
	}

	page, changed := e.Render(2000, 0)
	require.True(t, changed)

	items := decodeItems(t, page)
	var got []float64
	for _, item := range items {
		got = append(got, item[0].(float64))
	}
	// Strictly after since, newest first.
	assert.Equal(t, []float64{5000, 4000, 3000}, got)
}

func TestRenderUnchangedForKnownLatest(t *testing.T) {
	e, _ := newTestEngine(&types.EventKind, &memStore{})

	page, changed := e.Render(0, 0)
	require.True(t, changed)
	assert.Equal(t, "[]", string(page.Items))

	id := e.Ingest(1000, "h", "a", event(1), false)

	_, changed = e.Render(0, id)
	assert.False(t, changed)

	_, changed = e.Render(0, id-1)
	assert.True(t, changed)
}

func TestRenderTruncatesAtCapacity(t *testing.T) {
	clock := sagatest.NewFakeClock(epoch)
	e := New(&types.EventKind, &memStore{}, Config{RenderCapacity: 300, Clock: clock.Now})
	for i := 0; i < 50; i++ {
		e.Ingest(int64(1000+i), "host", "app", event(i), false)
	}

	page, changed := e.Render(0, 0)
	require.True(t, changed)
	assert.True(t, page.Truncated)
	assert.LessOrEqual(t, len(page.Items), 300)

	items := decodeItems(t, page)
	require.NotEmpty(t, items)
	assert.Len(t, items, page.Count)
	assert.Less(t, page.Count, 50)
	assert.Equal(t, float64(1049), items[0][0])
}

func TestRenderEscapesText(t *testing.T) {
	e, _ := newTestEngine(&types.EventKind, &memStore{})
	e.Ingest(1000, "h", "a", types.Fields{"C", "O", "A", `say "hi"\now`}, false)

	page, _ := e.Render(0, 0)
	items := decodeItems(t, page)
	require.Len(t, items, 1)
	assert.Equal(t, `say "hi"\now`, items[0][4])
}

func TestLatenessStats(t *testing.T) {
	e, clock := newTestEngine(&types.EventKind, &memStore{})
	now := clock.Now().UnixMilli()

	assert.Zero(t, e.Stats().Lateness.Count)

	e.Ingest(now-4000, "h", "a", event(1), false)
	e.Ingest(now+4000, "h", "a", event(2), false)

	stats := e.Stats()
	assert.Equal(t, float64(2), stats.Lateness.Count)
	assert.InDelta(t, 4, stats.Lateness.Max, 0.1)
}

func TestSensorSamplesPersistWithSingleHeader(t *testing.T) {
	root := sagatest.TempRoot(t)
	w := writer.New(root, writer.WithLocation(time.UTC))
	e, clock := newTestEngine(&types.SensorKind, w)

	base := clock.Now().Add(-300 * time.Second).UnixMilli()
	var ids []int64
	for i := 0; i < 257; i++ {
		ids = append(ids, e.Ingest(base+int64(i)*1000, "h", "a",
			types.Fields{"attic", "temp", fmt.Sprintf("%d", i), "C"}, true))
	}
	e.SaveDue(true)

	rows, headers := sagatest.CountDataRows(t, root, "sensor.csv", types.SensorKind.Header)
	assert.Equal(t, 257, rows)
	assert.Equal(t, 1, headers)

	records := e.Records()
	require.Len(t, records, 256)
	assert.Equal(t, ids[1], records[0].ID)
	assert.Equal(t, ids[256], records[255].ID)

	lines := sagatest.ReadLines(t, filepath.Join(root, "2024", "03", "14", "sensor.csv"))
	require.Len(t, lines, 258)
	assert.Equal(t, types.SensorKind.Header, lines[0])
	assert.Equal(t, fmt.Sprintf("%s,h,a,attic,temp,0,C", types.FormatTimestamp(base)), lines[1])
}

func TestBackgroundSavesAgainstItsOwnTime(t *testing.T) {
	store := &memStore{}
	e, clock := newTestEngine(&types.EventKind, store)
	ts := clock.Now().UnixMilli()

	e.Ingest(ts, "h", "a", event(1), true)

	// The engine clock stays put: only the tick time can make the record due.
	require.True(t, e.Background(clock.Now().Add(time.Minute)))
	assert.Equal(t, []int64{ts}, store.timestamps())

	watermark, ok := e.Watermark()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Minute).UnixMilli()-config.DefaultSaveDelay.Milliseconds(), watermark)
}
