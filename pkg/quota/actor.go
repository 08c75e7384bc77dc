package quota

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/plans"
)

const defaultLockTimeout = 5 * time.Second

// ActorConfig configures an Actor
type ActorConfig struct {
	Store   Store
	Catalog plans.Catalog

	// Locks is shared by every Actor that fronts the same Store.
	// A new KeyLock is created when nil.
	Locks *KeyLock

	// LockTimeout bounds how long a call waits for its owner's turn
	LockTimeout time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Now is the clock used for month rollover, time.Now when nil
	Now func() time.Time
}

// Actor serializes quota decisions per owner
type Actor struct {
	store       Store
	catalog     plans.Catalog
	locks       *KeyLock
	lockTimeout time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewActor creates a new Actor
func NewActor(cfg ActorConfig) *Actor {
	if cfg.Locks == nil {
		cfg.Locks = NewKeyLock(0)
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Actor{
		store:       cfg.Store,
		catalog:     cfg.Catalog,
		locks:       cfg.Locks,
		lockTimeout: cfg.LockTimeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
}

// CheckAndIncrement admits one event of the given kind for ownerID.
//
// It returns nil when admitted, *DeniedError when the plan ceiling has been
// reached, and an error wrapping ErrConfiguration or ErrUnavailable otherwise.
// Custom event kinds are admitted without touching the store.
func (a *Actor) CheckAndIncrement(ctx context.Context, ownerID string, kind EventKind, planName string) error {
	dim, governed := kind.Dimension()
	if !governed {
		return nil
	}

	plan, err := a.plan(ctx, planName)
	if err != nil {
		return err
	}

	unlock, err := a.acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer unlock()

	month := MonthKey(a.now())
	limit := ceiling(plan, dim)

	var denied *DeniedError
	start := time.Now()
	err = a.store.Update(ctx, ownerID, func(s *State) (bool, error) {
		denied = nil
		changed := false
		if dim == DimensionPageView {
			changed = s.rollover(month)
		}
		current := s.counter(dim)
		if current >= limit {
			denied = &DeniedError{OwnerID: ownerID, Dimension: dim, Current: current, Limit: limit}
			return changed, nil
		}
		s.increment(dim)
		return true, nil
	})
	a.metrics.RecordQuotaStore("update", time.Since(start), err)

	if err != nil {
		a.metrics.RecordQuotaDecision(string(dim), "error")
		a.logger.WithError(err).WithField("owner_id", ownerID).Warn("Quota update failed")
		return err
	}
	if denied != nil {
		a.metrics.RecordQuotaDecision(string(dim), "denied")
		a.logger.WithFields(map[string]interface{}{
			"owner_id":  ownerID,
			"dimension": dim,
			"limit":     limit,
		}).Debug("Quota denied")
		return denied
	}

	a.metrics.RecordQuotaDecision(string(dim), "admitted")
	return nil
}

// ReadUsage returns the owner's usage against planName.
//
// A month rollover is applied to the returned view only; the stored record is
// left for the next page_view increment to reset.
func (a *Actor) ReadUsage(ctx context.Context, ownerID, planName string) (UsageSnapshot, error) {
	plan, err := a.plan(ctx, planName)
	if err != nil {
		return UsageSnapshot{}, err
	}

	unlock, err := a.acquire(ctx, ownerID)
	if err != nil {
		return UsageSnapshot{}, err
	}
	defer unlock()

	start := time.Now()
	state, err := a.store.Get(ctx, ownerID)
	a.metrics.RecordQuotaStore("get", time.Since(start), err)
	if err != nil {
		return UsageSnapshot{}, err
	}

	state.rollover(MonthKey(a.now()))

	return UsageSnapshot{
		ConsumedPageViews:   state.PageViewsThisMonth,
		AllowedPageViews:    plan.MaxPageViewsPerMonth,
		AllowedTeamMembers:  plan.MaxTeamMembers,
		AllowedSites:        plan.MaxSites,
		ConsumedTeamMembers: state.TeamMembersTotal,
		ConsumedSites:       state.SitesTotal,
		Month:               state.MonthKey,
	}, nil
}

func (a *Actor) plan(ctx context.Context, name string) (plans.Plan, error) {
	plan, err := a.catalog.Lookup(ctx, name)
	if err == nil {
		return plan, nil
	}
	if errors.Is(err, plans.ErrUnknownPlan) || errors.Is(err, plans.ErrInvalidPlan) {
		return plans.Plan{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return plans.Plan{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (a *Actor) acquire(ctx context.Context, ownerID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, a.lockTimeout)
	defer cancel()

	unlock, err := a.locks.Acquire(lockCtx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for owner %s: %v", ErrUnavailable, ownerID, err)
	}
	return unlock, nil
}
