package api

import (
	"net/http"
	"strconv"
)

// parsePaginationParams reads offset-based pagination from the query string
// (?offset=20&limit=10). A limit outside (0, maxLimit] falls back to the
// default, a negative offset to zero.
func parsePaginationParams(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
