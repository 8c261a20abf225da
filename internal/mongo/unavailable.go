package mongo

import (
	"context"

	"github.com/mbarkia/darna/internal/darna"
)

// Unavailable is the Store handed out when no database is configured. It
// lets the process start and serve its health surface while every data
// operation reports storage unavailable.
type Unavailable struct{}

var _ darna.Store = Unavailable{}
var _ darna.HealthChecker = Unavailable{}

func (Unavailable) AtomicUpsert(context.Context, string, darna.Doc, darna.Doc, darna.Doc) (string, bool, error) {
	return "", false, darna.ErrStorageUnavailable
}

func (Unavailable) FindOne(context.Context, string, darna.Doc) (darna.Doc, error) {
	return nil, darna.ErrStorageUnavailable
}

func (Unavailable) InsertOne(context.Context, string, darna.Doc) (string, error) {
	return "", darna.ErrStorageUnavailable
}

func (Unavailable) Find(context.Context, string, darna.Doc, darna.FindOpts) ([]darna.Doc, error) {
	return nil, darna.ErrStorageUnavailable
}

func (Unavailable) UpdateByID(context.Context, string, string, darna.Doc) (int64, error) {
	return 0, darna.ErrStorageUnavailable
}

func (Unavailable) Aggregate(context.Context, string, []darna.Doc) ([]darna.Doc, error) {
	return nil, darna.ErrStorageUnavailable
}

func (Unavailable) Health(context.Context) darna.HealthReport {
	return darna.HealthReport{Err: "DATABASE_URL is not set"}
}
