package domain

import (
	"sync"
	"time"
)

// FeatureViewRegistry holds versioned feature view definitions. Versions of a
// name form a strictly increasing sequence starting at 1, assigned here at
// creation time. Entries are append-only: never removed, never mutated.
//
// The registry is expected to be populated before concurrent traffic begins,
// but lookups are cheap to make safe, so all access goes through a RWMutex.
type FeatureViewRegistry struct {
	mu    sync.RWMutex
	views map[string][]*FeatureView
	names []string
}

func NewFeatureViewRegistry() *FeatureViewRegistry {
	return &FeatureViewRegistry{
		views: make(map[string][]*FeatureView),
	}
}

// CreateFeatureView registers a new version of view.Name. The stored entry is
// a copy of the definition with Version and CreatedAt assigned; any version
// supplied by the caller is ignored. Returns a copy of the stored entry.
func (r *FeatureViewRegistry) CreateFeatureView(view *FeatureView) *FeatureView {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := view.clone()
	stored.Version = len(r.views[view.Name]) + 1
	stored.CreatedAt = time.Now()

	if _, ok := r.views[view.Name]; !ok {
		r.names = append(r.names, view.Name)
	}
	r.views[view.Name] = append(r.views[view.Name], stored)

	return stored.clone()
}

// GetFeatureView returns the latest version of the named view, or nil if the
// name is unknown. Absence is not an error. The result is a copy; mutating it
// cannot alter the registered definition.
func (r *FeatureViewRegistry) GetFeatureView(name string) *FeatureView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.views[name]
	if len(versions) == 0 {
		return nil
	}
	return versions[len(versions)-1].clone()
}

// GetFeatureViewByVersion returns the named view at the given version, or nil
// if the name or version is unknown. The result is a copy, as with
// GetFeatureView.
func (r *FeatureViewRegistry) GetFeatureViewByVersion(name string, version int) *FeatureView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.views[name]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Version == version {
			return versions[i].clone()
		}
	}
	return nil
}

// ListFeatureViews returns the registered view names in registration order.
func (r *FeatureViewRegistry) ListFeatureViews() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.names...)
}

// GetFeatureViewVersions returns the version numbers registered for name in
// ascending order, empty if the name is unknown.
func (r *FeatureViewRegistry) GetFeatureViewVersions(name string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.views[name]
	result := make([]int, 0, len(versions))
	for _, v := range versions {
		result = append(result, v.Version)
	}
	return result
}
