package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarkia/darna/internal/darna"
)

func seed(t *testing.T, s *Store, docs ...darna.Doc) []string {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := s.InsertOne(context.Background(), "things", doc)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestFindFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s,
		darna.Doc{"city": "Tunis", "price": 400.0, "title": "Studio Lac 1"},
		darna.Doc{"city": "Sousse", "price": 300.0, "title": "S+1 Sahloul"},
		darna.Doc{"city": "tunis", "price": 900.0, "title": "Villa Gammarth"},
	)

	for _, tc := range []struct {
		name   string
		filter darna.Doc
		want   int
	}{
		{"empty matches all", darna.Doc{}, 3},
		{"equality", darna.Doc{"city": "Sousse"}, 1},
		{"case-insensitive regex", darna.Doc{"city": darna.Doc{"$regex": "tunis", "$options": "i"}}, 2},
		{"gte", darna.Doc{"price": darna.Doc{"$gte": 400.0}}, 2},
		{"gte and lte", darna.Doc{"price": darna.Doc{"$gte": 350.0, "$lte": 500.0}}, 1},
		{"or across fields", darna.Doc{"$or": []darna.Doc{
			{"title": darna.Doc{"$regex": "villa", "$options": "i"}},
			{"city": "Sousse"},
		}}, 2},
		{"missing field never matches", darna.Doc{"bedrooms": 2}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Find(ctx, "things", tc.filter, darna.FindOpts{})
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestFindSortSkipLimit(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seed(t, s,
		darna.Doc{"title": "a", "created_at": base},
		darna.Doc{"title": "b", "created_at": base.Add(2 * time.Hour)},
		darna.Doc{"title": "c", "created_at": base.Add(time.Hour)},
	)

	titles := func(docs []darna.Doc) []string {
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d["title"].(string))
		}
		return out
	}

	got, err := s.Find(ctx, "things", darna.Doc{}, darna.FindOpts{Sort: "-created_at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, titles(got))

	got, err = s.Find(ctx, "things", darna.Doc{}, darna.FindOpts{Sort: "created_at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, titles(got))

	got, err = s.Find(ctx, "things", darna.Doc{}, darna.FindOpts{Sort: "created_at", Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, titles(got))

	got, err = s.Find(ctx, "things", darna.Doc{}, darna.FindOpts{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAtomicUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, created, err := s.AtomicUpsert(ctx, "things",
		darna.Doc{"dedup_key": "k1"},
		darna.Doc{"title": "first", "updated_at": 1},
		darna.Doc{"created_at": 1, "status": "pending"})
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := s.AtomicUpsert(ctx, "things",
		darna.Doc{"dedup_key": "k1"},
		darna.Doc{"title": "second", "updated_at": 2},
		darna.Doc{"created_at": 2, "status": "pending"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, id2)

	doc, err := s.FindOne(ctx, "things", darna.Doc{"dedup_key": "k1"})
	require.NoError(t, err)
	assert.Equal(t, "second", doc["title"])
	assert.Equal(t, 2, doc["updated_at"])
	// insert-only fields survive the second write untouched
	assert.Equal(t, 1, doc["created_at"])
}

func TestFindOneNotFound(t *testing.T) {
	s := New()
	_, err := s.FindOne(context.Background(), "things", darna.Doc{"_id": "missing"})
	assert.ErrorIs(t, err, darna.ErrNotFound)
}

func TestUpdateByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	ids := seed(t, s, darna.Doc{"status": "pending"})

	n, err := s.UpdateByID(ctx, "things", ids[0], darna.Doc{"status": "approved"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	doc, err := s.FindOne(ctx, "things", darna.Doc{"_id": ids[0]})
	require.NoError(t, err)
	assert.Equal(t, "approved", doc["status"])

	n, err = s.UpdateByID(ctx, "things", "missing", darna.Doc{"status": "approved"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestAggregateMatchGroup(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s,
		darna.Doc{"source": "tayara", "status": "approved", "price": 100.0},
		darna.Doc{"source": "tayara", "status": "approved", "price": 300.0},
		darna.Doc{"source": "facebook", "status": "approved", "price": 500.0},
		darna.Doc{"source": "tayara", "status": "pending", "price": 900.0},
	)

	rows, err := s.Aggregate(ctx, "things", []darna.Doc{
		{"$match": darna.Doc{"status": "approved"}},
		{"$group": darna.Doc{
			"_id":       "$source",
			"count":     darna.Doc{"$sum": 1},
			"avg_price": darna.Doc{"$avg": "$price"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[any]darna.Doc{}
	for _, row := range rows {
		byID[row["_id"]] = row
	}
	assert.Equal(t, 2.0, byID["tayara"]["count"])
	assert.Equal(t, 200.0, byID["tayara"]["avg_price"])
	assert.Equal(t, 1.0, byID["facebook"]["count"])

	_, err = s.Aggregate(ctx, "things", []darna.Doc{{"$lookup": darna.Doc{}}})
	assert.Error(t, err)
}
