package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mbarkia/darna/internal/darna"
	derrs "github.com/mbarkia/darna/internal/errors"
)

// apiError maps domain errors onto coded responses: validation failures
// carry 422 with the offending field, a missing document carries 404, and
// a storage outage carries 503.
func apiError(err error) error {
	var verr darna.ValidationError
	if errors.As(err, &verr) {
		return derrs.E(verr, http.StatusUnprocessableEntity, derrs.Detail{
			Field: verr.Field,
			Error: verr.Reason,
		})
	}
	if errors.Is(err, darna.ErrNotFound) {
		return derrs.E("not found", http.StatusNotFound)
	}
	if errors.Is(err, darna.ErrStorageUnavailable) {
		return derrs.E("storage unavailable", http.StatusServiceUnavailable)
	}

	return err
}

// docResp reshapes a stored document for the wire: the storage id field
// becomes id and times render as RFC 3339.
func docResp(doc darna.Doc) darna.Doc {
	out := make(darna.Doc, len(doc))
	for k, v := range doc {
		if k == "_id" {
			out["id"] = v
			continue
		}
		if t, ok := v.(time.Time); ok {
			out[k] = t.UTC().Format(time.RFC3339)
			continue
		}
		out[k] = v
	}

	return out
}

func docResps(docs []darna.Doc) []darna.Doc {
	out := make([]darna.Doc, 0, len(docs))
	for _, doc := range docs {
		out = append(out, docResp(doc))
	}

	return out
}
