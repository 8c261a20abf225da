package darna

import "context"

// Doc is a loose document as the store speaks it: field name to value.
// Filters use the store's operator syntax ($regex, $gte, $lte, $or).
type Doc = map[string]any

// Collection names.
const (
	CollectionListing     = "listing"
	CollectionSavedSearch = "saved_search"
	CollectionAlert       = "alert"
)

// FindOpts shapes a Find call. Sort is a field name, with a leading "-" for
// descending order; empty means store order.
type FindOpts struct {
	Sort  string
	Limit int64
	Skip  int64
}

// Store is the document-store contract the rest of the system depends on.
// One instance is constructed at startup and passed by reference; there is
// no package-global handle. Identifiers are store-native, surfaced as
// strings.
type Store interface {
	// AtomicUpsert updates the record matching match, or inserts one, as a
	// single atomic server-side operation. set applies on every write,
	// setOnInsert only when the record is created. Returns the record's id
	// and whether this call created it. Two racing calls for the same match
	// yield exactly one created=true.
	AtomicUpsert(ctx context.Context, collection string, match, set, setOnInsert Doc) (id string, created bool, err error)

	// FindOne returns the first record matching filter, or ErrNotFound.
	FindOne(ctx context.Context, collection string, filter Doc) (Doc, error)

	// InsertOne stores a new record and returns its id.
	InsertOne(ctx context.Context, collection string, doc Doc) (string, error)

	// Find returns the records matching filter, shaped by opts.
	Find(ctx context.Context, collection string, filter Doc, opts FindOpts) ([]Doc, error)

	// UpdateByID sets fields on the record with the given id and reports
	// how many records were modified (0 or 1).
	UpdateByID(ctx context.Context, collection string, id string, set Doc) (int64, error)

	// Aggregate runs a grouping pipeline and returns its result rows.
	Aggregate(ctx context.Context, collection string, pipeline []Doc) ([]Doc, error)
}

// HealthReport describes the storage backend for the diagnostic endpoint.
type HealthReport struct {
	Configured   bool
	Connected    bool
	DatabaseName string
	Collections  []string
	Err          string
}

// HealthChecker is implemented by stores that can report their state.
type HealthChecker interface {
	Health(ctx context.Context) HealthReport
}
