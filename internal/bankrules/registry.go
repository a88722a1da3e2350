package bankrules

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Registry hands out merged rule sets. Merging compiles nothing at request
// time (patterns are compiled at package init), but the merged slices are
// still cached so repeated extraction runs share one value per institution.
type Registry struct {
	cache *gocache.Cache
}

// NewRegistry creates a registry with a long-lived merge cache. Rule sets
// are static for the life of the process, so the TTL is generous.
func NewRegistry() *Registry {
	return &Registry{
		cache: gocache.New(12*time.Hour, 1*time.Hour),
	}
}

// For returns the merged rule set for an institution, or the base set when
// the institution is unknown or empty.
func (r *Registry) For(id InstitutionID) RuleSet {
	if id == "" {
		return Base()
	}
	if cached, ok := r.cache.Get(string(id)); ok {
		return cached.(RuleSet)
	}
	overlay, ok := overlays[id]
	if !ok {
		return Base()
	}
	merged := Merge(Base(), overlay)
	r.cache.Set(string(id), merged, gocache.DefaultExpiration)
	return merged
}
