// Package remote talks to the authoritative per-user document store.
package remote

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("document not found")

// Snapshot is one document returned by a query.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// DocumentStore is a document database organised in named collections.
type DocumentStore interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	// Set creates or fully replaces the document.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update replaces the given top-level fields of an existing document and
	// returns ErrNotFound when it does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Merge creates the document or deep-merges data into it. Fields absent
	// from data are preserved.
	Merge(ctx context.Context, collection, id string, data map[string]any) error
	QueryByField(ctx context.Context, collection, field string, value any) ([]Snapshot, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// deepMerge merges src into dst. Nested maps are merged; every other value
// in src replaces the one in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
