// Package plans provides the subscription plan catalog used for admission control.
//
// # Overview
//
// A plan is a named, immutable tuple of usage ceilings. The catalog maps plan
// names to plans and is administered outside this service; this package only
// reads it.
//
// # Default Tiers
//
// Free:
//   - 100000 page views/month
//   - 1 site
//   - 1 team member
//
// Pro:
//   - 1000000 page views/month
//   - 10 sites
//   - 5 team members
//
// Business:
//   - 10000000 page views/month
//   - 50 sites
//   - 25 team members
//
// # Backends
//
//   - MemoryCatalog: YAML file or static plans, hot-reloaded with WatchFile
//   - SQLCatalog: plans table in Postgres (or sqlite for local development)
//   - CachedCatalog: expirable LRU in front of any Catalog
//
// # Usage Example
//
//	catalog, err := plans.LoadFile("plans.yaml")
//	plan, err := catalog.Lookup(ctx, "pro")
//	if errors.Is(err, plans.ErrUnknownPlan) {
//		// configuration problem, not retryable
//	}
//
// # Related Packages
//
//   - pkg/quota: enforces plan ceilings per owner
//   - pkg/owners: resolves which plan an owner holds
package plans
