// Package formcache keeps drafts of in-progress forms so a reload does not
// lose them.
package formcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/keystore"
	"github.com/fitforge/fitforge-backend/internal/logging"
)

const (
	// Key holds the map of every form draft on the device.
	Key = "formData"

	// ExpireAfter is the age at which a draft is swept.
	ExpireAfter = 24 * time.Hour

	savedAtField = "savedAt"
)

type Cache struct {
	kv     *keystore.Store
	logger *zap.Logger

	// mu serializes this process's access to the shared map. Writers in other
	// processes are fenced by keystore.Update.
	mu sync.Mutex
}

func New(kv *keystore.Store, logger *zap.Logger) *Cache {
	return &Cache{kv: kv, logger: logging.OrNop(logger)}
}

// SaveFormData replaces the draft of formID with data stamped with savedAt.
func (c *Cache) SaveFormData(ctx context.Context, formID string, data map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := make(map[string]any, len(data)+1)
	for k, v := range data {
		entry[k] = v
	}
	entry[savedAtField] = c.kv.Now().UnixMilli()

	return c.update(ctx, func(forms map[string]map[string]any) bool {
		forms[formID] = entry
		return true
	})
}

// LoadFormData returns the draft of formID without its savedAt stamp, or an
// empty map.
func (c *Cache) LoadFormData(ctx context.Context, formID string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.load(ctx)[formID]
	out := make(map[string]any, len(entry))
	if !ok {
		return out
	}
	for k, v := range entry {
		if k != savedAtField {
			out[k] = v
		}
	}
	return out
}

// SavedAt returns when the draft of formID was written.
func (c *Cache) SavedAt(ctx context.Context, formID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.load(ctx)[formID]
	if !ok {
		return time.Time{}, false
	}
	ms, ok := savedAt(entry)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (c *Cache) ClearFormData(ctx context.Context, formID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.update(ctx, func(forms map[string]map[string]any) bool {
		if _, ok := forms[formID]; !ok {
			return false
		}
		delete(forms, formID)
		return true
	})
}

// CleanExpiredFormData drops drafts older than ExpireAfter and returns how
// many it dropped. Drafts without a readable savedAt are dropped too.
func (c *Cache) CleanExpiredFormData(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.kv.Now().UnixMilli()
	removed := 0
	ok := c.update(ctx, func(forms map[string]map[string]any) bool {
		removed = 0
		for id, entry := range forms {
			ms, ok := savedAt(entry)
			if ok && now-ms <= ExpireAfter.Milliseconds() {
				continue
			}
			delete(forms, id)
			removed++
		}
		return removed > 0
	})
	if !ok {
		return 0
	}

	if removed > 0 {
		c.logger.Debug("expired form drafts removed", zap.Int("count", removed))
	}
	return removed
}

// update applies fn to the stored map. fn may run more than once when another
// writer races it and reports whether the map changed.
func (c *Cache) update(ctx context.Context, fn func(map[string]map[string]any) bool) bool {
	return keystore.Update(ctx, c.kv, Key, map[string]map[string]any(nil),
		func(forms map[string]map[string]any) (map[string]map[string]any, bool) {
			if forms == nil {
				forms = make(map[string]map[string]any)
			}
			return forms, fn(forms)
		})
}

func (c *Cache) load(ctx context.Context) map[string]map[string]any {
	forms := keystore.Load[map[string]map[string]any](ctx, c.kv, Key, nil)
	if forms == nil {
		forms = make(map[string]map[string]any)
	}
	return forms
}

func savedAt(entry map[string]any) (int64, bool) {
	switch v := entry[savedAtField].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}
