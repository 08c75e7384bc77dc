package owners

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSiteNotFound is returned when no owner is registered for a site
var ErrSiteNotFound = errors.New("site not found")

// Owner is the account a site belongs to
type Owner struct {
	ID       string
	PlanName string
}

// Resolver maps a site ID to its owner
type Resolver interface {
	Resolve(ctx context.Context, siteID string) (Owner, error)
}

// StaticResolver is a fixed, map-backed Resolver
type StaticResolver struct {
	sites map[string]Owner
}

// NewStaticResolver copies sites into a new resolver
func NewStaticResolver(sites map[string]Owner) *StaticResolver {
	m := make(map[string]Owner, len(sites))
	for k, v := range sites {
		m[k] = v
	}
	return &StaticResolver{sites: m}
}

// ParseStatic builds a StaticResolver from site -> "owner:plan" entries
func ParseStatic(entries map[string]string) (*StaticResolver, error) {
	sites := make(map[string]Owner, len(entries))
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, siteID := range keys {
		ownerID, planName, ok := strings.Cut(entries[siteID], ":")
		if !ok || ownerID == "" || planName == "" {
			return nil, fmt.Errorf("invalid owner mapping for site %q: want owner:plan", siteID)
		}
		sites[siteID] = Owner{ID: ownerID, PlanName: planName}
	}
	return &StaticResolver{sites: sites}, nil
}

// Resolve implements Resolver
func (r *StaticResolver) Resolve(_ context.Context, siteID string) (Owner, error) {
	owner, ok := r.sites[siteID]
	if !ok {
		return Owner{}, fmt.Errorf("%w: %s", ErrSiteNotFound, siteID)
	}
	return owner, nil
}
