// Package registry is the Model Endpoint Directory: it maps model types to
// the invocation URLs of their prediction endpoints.
//
// Readers always see an immutable snapshot. A refresh publishes a whole new
// snapshot atomically, so a job submitted mid-refresh captures a consistent
// endpoint and keeps it for its entire lifetime.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Directory resolves model types to endpoint URLs.
type Directory struct {
	mu       sync.RWMutex
	snapshot map[string]string
}

// New builds a Directory from an initial model-to-URL map. The map is copied;
// later mutation of the argument does not affect the directory.
func New(endpoints map[string]string) *Directory {
	d := &Directory{}
	d.Replace(endpoints)
	return d
}

// Resolve returns the endpoint URL for model, or false if the model has no
// registered endpoint in the current snapshot.
func (d *Directory) Resolve(model string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	url, ok := d.snapshot[model]
	return url, ok
}

// Models returns the models in the current snapshot, sorted.
func (d *Directory) Models() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	models := make([]string, 0, len(d.snapshot))
	for m := range d.snapshot {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Replace publishes a new snapshot, replacing the old one entirely.
func (d *Directory) Replace(endpoints map[string]string) {
	snapshot := make(map[string]string, len(endpoints))
	for model, url := range endpoints {
		snapshot[model] = url
	}
	d.mu.Lock()
	d.snapshot = snapshot
	d.mu.Unlock()
}

// RunRefresh polls fetch on the given interval and publishes each successful
// result as a new snapshot. A fetch failure keeps the previous snapshot.
// Blocks until ctx is cancelled.
func (d *Directory) RunRefresh(ctx context.Context, interval time.Duration, fetch func(context.Context) (map[string]string, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			endpoints, err := fetch(ctx)
			if err != nil {
				slog.Warn("endpoint refresh failed, keeping previous snapshot", "error", err)
				continue
			}
			d.Replace(endpoints)
			slog.Info("endpoint directory refreshed", "models", len(endpoints))
		}
	}
}
