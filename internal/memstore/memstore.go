// Package memstore is an in-memory darna.Store substitute used by tests.
// It interprets the operator subset the system actually builds: equality,
// $regex (with $options "i"), $gte, $lte, $or, plus $match/$group pipelines
// with $sum and $avg accumulators.
package memstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mbarkia/darna/internal/darna"
)

type Store struct {
	mu          sync.Mutex
	collections map[string][]darna.Doc
	seq         int
}

var _ darna.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string][]darna.Doc),
	}
}

func (s *Store) nextID() string {
	s.seq++
	return fmt.Sprintf("%024x", s.seq)
}

func (s *Store) AtomicUpsert(_ context.Context, collection string, match, set, setOnInsert darna.Doc) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.collections[collection] {
		if !matches(doc, match) {
			continue
		}
		for k, v := range set {
			doc[k] = v
		}
		return doc["_id"].(string), false, nil
	}

	doc := darna.Doc{}
	for k, v := range match {
		if _, isOp := v.(darna.Doc); !isOp {
			doc[k] = v
		}
	}
	for k, v := range setOnInsert {
		doc[k] = v
	}
	for k, v := range set {
		doc[k] = v
	}
	id := s.nextID()
	doc["_id"] = id
	s.collections[collection] = append(s.collections[collection], doc)

	return id, true, nil
}

func (s *Store) FindOne(_ context.Context, collection string, filter darna.Doc) (darna.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			return clone(doc), nil
		}
	}

	return nil, darna.ErrNotFound
}

func (s *Store) InsertOne(_ context.Context, collection string, doc darna.Doc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := clone(doc)
	id := s.nextID()
	stored["_id"] = id
	s.collections[collection] = append(s.collections[collection], stored)

	return id, nil
}

func (s *Store) Find(_ context.Context, collection string, filter darna.Doc, opts darna.FindOpts) ([]darna.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []darna.Doc
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			out = append(out, clone(doc))
		}
	}

	if opts.Sort != "" {
		field, desc := strings.CutPrefix(opts.Sort, "-")
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][field], out[j][field])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(out)) {
			return nil, nil
		}
		out = out[opts.Skip:]
	}
	if opts.Limit > 0 && int64(len(out)) > opts.Limit {
		out = out[:opts.Limit]
	}

	return out, nil
}

func (s *Store) UpdateByID(_ context.Context, collection string, id string, set darna.Doc) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.collections[collection] {
		if doc["_id"] == id {
			for k, v := range set {
				doc[k] = v
			}
			return 1, nil
		}
	}

	return 0, nil
}

func (s *Store) Aggregate(_ context.Context, collection string, pipeline []darna.Doc) ([]darna.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	var rows []darna.Doc
	for _, doc := range docs {
		rows = append(rows, clone(doc))
	}

	for _, stage := range pipeline {
		for op, spec := range stage {
			switch op {
			case "$match":
				filter, ok := spec.(darna.Doc)
				if !ok {
					return nil, fmt.Errorf("bad $match spec: %T", spec)
				}
				var kept []darna.Doc
				for _, row := range rows {
					if matches(row, filter) {
						kept = append(kept, row)
					}
				}
				rows = kept
			case "$group":
				grouped, err := group(rows, spec)
				if err != nil {
					return nil, err
				}
				rows = grouped
			default:
				return nil, fmt.Errorf("unsupported pipeline stage %q", op)
			}
		}
	}

	return rows, nil
}

// Health reports the substitute as a healthy in-memory backend.
func (s *Store) Health(_ context.Context) darna.HealthReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	return darna.HealthReport{
		Configured:   true,
		Connected:    true,
		DatabaseName: "memory",
		Collections:  names,
	}
}

func clone(doc darna.Doc) darna.Doc {
	out := make(darna.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func matches(doc, filter darna.Doc) bool {
	for field, cond := range filter {
		if field == "$or" {
			branches, ok := cond.([]darna.Doc)
			if !ok {
				return false
			}
			anyMatch := false
			for _, branch := range branches {
				if matches(doc, branch) {
					anyMatch = true
					break
				}
			}
			if !anyMatch {
				return false
			}
			continue
		}

		val, exists := doc[field]
		if ops, isOps := cond.(darna.Doc); isOps {
			if !matchOps(val, exists, ops) {
				return false
			}
			continue
		}
		if !exists || compare(val, cond) != 0 {
			return false
		}
	}

	return true
}

func matchOps(val any, exists bool, ops darna.Doc) bool {
	for op, arg := range ops {
		switch op {
		case "$regex":
			pattern, _ := arg.(string)
			if opts, _ := ops["$options"].(string); strings.Contains(opts, "i") {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false
			}
			s, ok := val.(string)
			if !ok || !re.MatchString(s) {
				return false
			}
		case "$options":
			// handled alongside $regex
		case "$gte":
			if !exists || compare(val, arg) < 0 {
				return false
			}
		case "$lte":
			if !exists || compare(val, arg) > 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// compare orders two values of the kinds that reach the store: numbers,
// strings, times. Mismatched kinds compare as unequal.
func compare(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	at, aIsTime := a.(time.Time)
	bt, bIsTime := b.(time.Time)
	if aIsTime && bIsTime {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		}
		return 0
	}

	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs)
	}

	return -2
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func group(rows []darna.Doc, spec any) ([]darna.Doc, error) {
	groupSpec, ok := spec.(darna.Doc)
	if !ok {
		return nil, fmt.Errorf("bad $group spec: %T", spec)
	}

	keyExpr, _ := groupSpec["_id"].(string)
	keyField := strings.TrimPrefix(keyExpr, "$")

	type bucket struct {
		key    any
		sums   map[string]float64
		counts map[string]int
	}
	var order []any
	buckets := make(map[any]*bucket)

	for _, row := range rows {
		key := row[keyField]
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, sums: map[string]float64{}, counts: map[string]int{}}
			buckets[key] = b
			order = append(order, key)
		}

		for field, accAny := range groupSpec {
			if field == "_id" {
				continue
			}
			acc, ok := accAny.(darna.Doc)
			if !ok {
				return nil, fmt.Errorf("bad accumulator for %q", field)
			}
			for op, arg := range acc {
				switch op {
				case "$sum":
					if n, ok := toFloat(arg); ok {
						b.sums[field] += n
						b.counts[field]++
						continue
					}
					ref, _ := arg.(string)
					if v, ok := toFloat(row[strings.TrimPrefix(ref, "$")]); ok {
						b.sums[field] += v
						b.counts[field]++
					}
				case "$avg":
					ref, _ := arg.(string)
					if v, ok := toFloat(row[strings.TrimPrefix(ref, "$")]); ok {
						b.sums[field] += v
						b.counts[field]++
					}
				default:
					return nil, fmt.Errorf("unsupported accumulator %q", op)
				}
			}
		}
	}

	out := make([]darna.Doc, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		row := darna.Doc{"_id": key}
		for field, accAny := range groupSpec {
			if field == "_id" {
				continue
			}
			acc := accAny.(darna.Doc)
			for op := range acc {
				switch op {
				case "$sum":
					row[field] = b.sums[field]
				case "$avg":
					if b.counts[field] == 0 {
						row[field] = nil
						continue
					}
					row[field] = b.sums[field] / float64(b.counts[field])
				}
			}
		}
		out = append(out, row)
	}

	return out, nil
}
