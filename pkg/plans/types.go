package plans

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownPlan is returned when a plan name is not in the catalog
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrInvalidPlan is returned when a plan definition fails validation
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrCatalogUnavailable is returned when the catalog backend cannot be reached
	ErrCatalogUnavailable = errors.New("plan catalog unavailable")
)

// Plan names of the default tiers
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Plan is a named set of usage ceilings
type Plan struct {
	Name                 string `json:"name" yaml:"name"`
	MaxPageViewsPerMonth int64  `json:"max_page_views" yaml:"max_page_views"`
	MaxSites             int64  `json:"max_sites" yaml:"max_sites"`
	MaxTeamMembers       int64  `json:"max_team_members" yaml:"max_team_members"`
}

// Validate checks the plan definition
func (p Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if p.MaxPageViewsPerMonth < 0 || p.MaxSites < 0 || p.MaxTeamMembers < 0 {
		return fmt.Errorf("%w: %s has a negative ceiling", ErrInvalidPlan, p.Name)
	}
	return nil
}

// Catalog looks up plans by name
type Catalog interface {
	Lookup(ctx context.Context, name string) (Plan, error)
}

// DefaultPlans returns the built-in plan tiers
func DefaultPlans() []Plan {
	return []Plan{
		{Name: PlanFree, MaxPageViewsPerMonth: 100000, MaxSites: 1, MaxTeamMembers: 1},
		{Name: PlanPro, MaxPageViewsPerMonth: 1000000, MaxSites: 10, MaxTeamMembers: 5},
		{Name: PlanBusiness, MaxPageViewsPerMonth: 10000000, MaxSites: 50, MaxTeamMembers: 25},
	}
}

func unknownPlan(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownPlan, name)
}
