// Package mongo implements darna.Store on a MongoDB database.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbarkia/darna/internal/darna"
)

// upsertRaceRetries bounds how often an upsert re-runs after losing an
// insert race on the unique dedup index.
const upsertRaceRetries = 3

type Store struct {
	client *driver.Client
	db     *driver.Database
}

var _ darna.Store = (*Store)(nil)
var _ darna.HealthChecker = (*Store)(nil)

// Connect dials the database and verifies it responds before returning a
// Store. The ping retries on a fibonacci backoff so a cold-starting
// database container gets a grace window.
func Connect(ctx context.Context, url, dbName string) (*Store, error) {
	client, err := driver.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}

	b := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))
	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		return retry.RetryableError(client.Ping(ctx, nil))
	}); err != nil {
		return nil, fmt.Errorf("error pinging mongo: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// Client exposes the underlying connection for migrations.
func (s *Store) Client() *driver.Client {
	return s.client
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// AtomicUpsert updates the document matching match, inserting it when
// absent. Two racing upserts on the same match cannot both insert: the
// unique index rejects the loser, which then retries onto the winner's
// document through the update path.
func (s *Store) AtomicUpsert(ctx context.Context, collection string, match, set, setOnInsert darna.Doc) (string, bool, error) {
	coll := s.db.Collection(collection)

	var lastErr error
	for attempt := 0; attempt <= upsertRaceRetries; attempt++ {
		res, err := coll.UpdateOne(ctx, bson.M(match), bson.M{
			"$set":         bson.M(set),
			"$setOnInsert": bson.M(setOnInsert),
		}, options.Update().SetUpsert(true))
		if driver.IsDuplicateKeyError(err) {
			lastErr = err
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("error upserting into %s: %w", collection, err)
		}

		if res.UpsertedID != nil {
			return idString(res.UpsertedID), true, nil
		}

		// update path: the result carries no id, so resolve it
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		err = coll.FindOne(ctx, bson.M(match),
			options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&row)
		if errors.Is(err, driver.ErrNoDocuments) {
			// matched document vanished before the lookup
			lastErr = err
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("error resolving upserted id in %s: %w", collection, err)
		}

		return row.ID.Hex(), false, nil
	}

	return "", false, fmt.Errorf("error upserting into %s after %d attempts: %w",
		collection, upsertRaceRetries+1, lastErr)
}

func (s *Store) FindOne(ctx context.Context, collection string, filter darna.Doc) (darna.Doc, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, prepFilter(filter)).Decode(&raw)
	if errors.Is(err, driver.ErrNoDocuments) {
		return nil, darna.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding in %s: %w", collection, err)
	}

	return normalizeDoc(raw), nil
}

func (s *Store) InsertOne(ctx context.Context, collection string, doc darna.Doc) (string, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, bson.M(doc))
	if err != nil {
		return "", fmt.Errorf("error inserting into %s: %w", collection, err)
	}

	return idString(res.InsertedID), nil
}

func (s *Store) Find(ctx context.Context, collection string, filter darna.Doc, fo darna.FindOpts) ([]darna.Doc, error) {
	opts := options.Find()
	if fo.Sort != "" {
		opts.SetSort(parseSort(fo.Sort))
	}
	if fo.Limit > 0 {
		opts.SetLimit(fo.Limit)
	}
	if fo.Skip > 0 {
		opts.SetSkip(fo.Skip)
	}

	cur, err := s.db.Collection(collection).Find(ctx, prepFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("error finding in %s: %w", collection, err)
	}

	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("error reading results from %s: %w", collection, err)
	}

	out := make([]darna.Doc, 0, len(raws))
	for _, raw := range raws {
		out = append(out, normalizeDoc(raw))
	}

	return out, nil
}

func (s *Store) UpdateByID(ctx context.Context, collection string, id string, set darna.Doc) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// not a well-formed id, so nothing can match it
		return 0, nil
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": oid}, bson.M{"$set": bson.M(set)})
	if err != nil {
		return 0, fmt.Errorf("error updating %s in %s: %w", id, collection, err)
	}

	return res.MatchedCount, nil
}

func (s *Store) Aggregate(ctx context.Context, collection string, pipeline []darna.Doc) ([]darna.Doc, error) {
	stages := make([]bson.M, 0, len(pipeline))
	for _, stage := range pipeline {
		stages = append(stages, bson.M(stage))
	}

	cur, err := s.db.Collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("error aggregating %s: %w", collection, err)
	}

	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("error reading aggregation from %s: %w", collection, err)
	}

	out := make([]darna.Doc, 0, len(raws))
	for _, raw := range raws {
		out = append(out, normalizeDoc(raw))
	}

	return out, nil
}

// Health reports whether the database answers and which collections it
// holds, capped at ten names.
func (s *Store) Health(ctx context.Context) darna.HealthReport {
	report := darna.HealthReport{
		Configured:   true,
		DatabaseName: s.db.Name(),
	}

	names, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		report.Err = err.Error()
		return report
	}

	sort.Strings(names)
	if len(names) > 10 {
		names = names[:10]
	}
	report.Connected = true
	report.Collections = names

	return report
}

// prepFilter rewrites the portable filter into driver terms: an _id that
// parses as an object id is matched as one, everything else passes
// through untouched.
func prepFilter(filter darna.Doc) bson.M {
	out := make(bson.M, len(filter))
	for k, v := range filter {
		if k == "_id" {
			if s, ok := v.(string); ok {
				if oid, err := primitive.ObjectIDFromHex(s); err == nil {
					out[k] = oid
					continue
				}
			}
		}
		out[k] = v
	}

	return out
}

// parseSort maps a "field" or "-field" spec onto a driver sort document.
func parseSort(spec string) bson.D {
	field, desc := strings.CutPrefix(spec, "-")
	order := 1
	if desc {
		order = -1
	}

	return bson.D{{Key: field, Value: order}}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprintf("%v", id)
	}
}

// normalizeDoc converts driver-decoded values into the portable forms the
// rest of the system works with: object ids become hex strings, datetimes
// become UTC time.Time, arrays become plain slices.
func normalizeDoc(raw bson.M) darna.Doc {
	out := make(darna.Doc, len(raw))
	for k, v := range raw {
		out[k] = normalizeValue(v)
	}

	return out
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	case primitive.A:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, normalizeValue(item))
		}
		return out
	case bson.M:
		return normalizeDoc(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}

	return v
}
