// Package quota enforces per-owner plan limits for incoming events.
//
// # Overview
//
// Every owner has exactly one usage record (State). All reads and writes of
// that record pass through an Actor, which serializes decisions per owner and
// never serializes across owners.
//
// Three event kinds are governed:
//
//	page_view          -> page views this month (resets lazily on a new UTC month)
//	team_member_added  -> team members, lifetime
//	site_created       -> sites, lifetime
//
// Every other event kind is admitted without touching the store.
//
// # Serialization
//
// Two layers keep "no double admit" true:
//
//  1. KeyLock: an in-process lock per owner id, so concurrent requests on one
//     replica queue instead of racing.
//  2. Store.Update: an atomic read-modify-write. RedisStore uses WATCH/MULTI
//     optimistic transactions so replicas sharing one Redis stay correct.
//
// # Errors
//
//	*DeniedError      limit reached, surfaced as 429, never retried
//	ErrConfiguration  unknown or invalid plan, surfaced as 4xx
//	ErrUnavailable    store or catalog unreachable; callers fail closed
//
// # Usage Example
//
//	actor := quota.NewActor(quota.ActorConfig{Store: store, Catalog: catalog})
//	err := actor.CheckAndIncrement(ctx, "owner-1", quota.KindPageView, "pro")
//	if quota.IsDenied(err) {
//		// 429
//	}
package quota
