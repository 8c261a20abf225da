package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarkia/darna/internal/darna"
	"github.com/mbarkia/darna/internal/memstore"
)

func studioRaw() RawListing {
	return RawListing{
		Title: ptr("Studio in Sousse"),
		Price: ptr(300.0),
		URL:   ptr("https://tayara.tn/item/123"),
	}
}

func countListings(t *testing.T, store *memstore.Store) int {
	t.Helper()
	docs, err := store.Find(context.Background(), darna.CollectionListing, darna.Doc{}, darna.FindOpts{})
	require.NoError(t, err)
	return len(docs)
}

func TestIngestOneIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := NewEngine(store)

	first, err := e.IngestOne(ctx, "tayara", studioRaw())
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.ID)

	second, err := e.IngestOne(ctx, "tayara", studioRaw())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, countListings(t, store))
}

func TestIngestOneFallbackCollapse(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := NewEngine(store)

	posted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	raw := RawListing{
		Title:    ptr("S+1 centre ville"),
		Price:    ptr(550.0),
		PostedAt: &posted,
	}

	first, err := e.IngestOne(ctx, "tayara", raw)
	require.NoError(t, err)
	second, err := e.IngestOne(ctx, "tayara", raw)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, countListings(t, store))
}

func TestIngestOneRefreshesFields(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := NewEngine(store)

	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)

	e.now = func() time.Time { return t1 }
	_, err := e.IngestOne(ctx, "tayara", studioRaw())
	require.NoError(t, err)

	e.now = func() time.Time { return t2 }
	raw := studioRaw()
	raw.Price = ptr(280.0)
	out, err := e.IngestOne(ctx, "tayara", raw)
	require.NoError(t, err)
	assert.False(t, out.Created)

	doc, err := store.FindOne(ctx, darna.CollectionListing, darna.Doc{"_id": out.ID})
	require.NoError(t, err)
	assert.Equal(t, 280.0, doc["price"])
	assert.Equal(t, t1, doc["created_at"])
	assert.Equal(t, t2, doc["updated_at"])
	assert.Equal(t, "pending", doc["status"])
}

func TestIngestOnePreservesModeratedStatus(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := NewEngine(store)

	first, err := e.IngestOne(ctx, "tayara", studioRaw())
	require.NoError(t, err)

	n, err := store.UpdateByID(ctx, darna.CollectionListing, first.ID, darna.Doc{"status": "approved"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	second, err := e.IngestOne(ctx, "tayara", studioRaw())
	require.NoError(t, err)
	assert.False(t, second.Created)

	doc, err := store.FindOne(ctx, darna.CollectionListing, darna.Doc{"_id": first.ID})
	require.NoError(t, err)
	assert.Equal(t, "approved", doc["status"])
}

func TestIngestOneConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := NewEngine(store)

	outcomes := make(chan Outcome, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.IngestOne(ctx, "tayara", studioRaw())
			assert.NoError(t, err)
			outcomes <- out
		}()
	}
	wg.Wait()
	close(outcomes)

	var created int
	ids := map[string]bool{}
	for out := range outcomes {
		if out.Created {
			created++
		}
		ids[out.ID] = true
	}

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, countListings(t, store))
}

func TestIngestOneRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := NewEngine(store)

	raw := studioRaw()
	raw.Price = ptr(-10.0)
	_, err := e.IngestOne(ctx, "tayara", raw)

	var verr darna.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "price", verr.Field)
	assert.Equal(t, 0, countListings(t, store))

	_, err = e.IngestOne(ctx, "craigslist", studioRaw())
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "source", verr.Field)
	assert.Equal(t, 0, countListings(t, store))
}

func TestIngestBatchBestEffort(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	e := NewEngine(store)

	bad := studioRaw()
	bad.Price = ptr(-1.0)
	other := RawListing{
		Title: ptr("Duplex à La Marsa"),
		URL:   ptr("https://tayara.tn/item/456"),
	}

	out, err := e.IngestBatch(ctx, "tayara", []RawListing{
		studioRaw(), // new
		bad,         // skipped
		studioRaw(), // duplicate of the first
		other,       // new
	})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Created)
	assert.Equal(t, 1, out.Updated)
	require.Len(t, out.IDs, 4)
	assert.NotEmpty(t, out.IDs[0])
	assert.Empty(t, out.IDs[1])
	assert.Equal(t, out.IDs[0], out.IDs[2])
	assert.NotEqual(t, out.IDs[0], out.IDs[3])

	require.Len(t, out.Errors, 1)
	assert.Equal(t, 1, out.Errors[0].Index)
	assert.Equal(t, "price", out.Errors[0].Field)

	assert.Equal(t, 2, countListings(t, store))
}

// flakyStore delegates to a real store until failAfter upserts have gone
// through, then refuses.
type flakyStore struct {
	darna.Store
	mu        sync.Mutex
	failAfter int
	calls     int
}

func (f *flakyStore) AtomicUpsert(ctx context.Context, collection string, match, set, setOnInsert darna.Doc) (string, bool, error) {
	f.mu.Lock()
	f.calls++
	failing := f.calls > f.failAfter
	f.mu.Unlock()

	if failing {
		return "", false, darna.ErrStorageUnavailable
	}
	return f.Store.AtomicUpsert(ctx, collection, match, set, setOnInsert)
}

func TestIngestBatchAbortsOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	e := NewEngine(&flakyStore{Store: mem, failAfter: 1})

	other := RawListing{
		Title: ptr("Duplex à La Marsa"),
		URL:   ptr("https://tayara.tn/item/456"),
	}
	out, err := e.IngestBatch(ctx, "tayara", []RawListing{studioRaw(), other})

	require.ErrorIs(t, err, darna.ErrStorageUnavailable)
	assert.ErrorContains(t, err, "item 1")

	// the first item stays written
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, countListings(t, mem))
}

func TestIngestOneStorageUnavailable(t *testing.T) {
	e := NewEngine(&flakyStore{Store: memstore.New(), failAfter: 0})

	_, err := e.IngestOne(context.Background(), "tayara", studioRaw())
	require.ErrorIs(t, err, darna.ErrStorageUnavailable)
}
