package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const (
	fieldPageViews   = "page_views"
	fieldTeamMembers = "team_members"
	fieldSites       = "sites"
	fieldMonth       = "month"

	defaultRedisPrefix     = "quota"
	defaultRedisMaxRetries = 16
)

// RedisStore keeps usage records in Redis hashes, one per owner.
//
// Updates use WATCH/MULTI so that concurrent writers on different replicas
// never both commit against the same observed state.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// NewRedisStore creates a Redis-backed store.
// maxRetries bounds optimistic transaction retries on write conflicts.
func NewRedisStore(client *redis.Client, prefix string, maxRetries int) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if maxRetries <= 0 {
		maxRetries = defaultRedisMaxRetries
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		maxRetries: maxRetries,
	}
}

func (s *RedisStore) key(ownerID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, ownerID)
}

// Get returns the record for ownerID, or a zero State
func (s *RedisStore) Get(ctx context.Context, ownerID string) (State, error) {
	values, err := s.client.HGetAll(ctx, s.key(ownerID)).Result()
	if err != nil {
		return State{}, fmt.Errorf("%w: redis get failed: %v", ErrUnavailable, err)
	}
	return decodeState(values)
}

// callbackError marks errors that came from the caller's UpdateFunc
type callbackError struct{ err error }

func (e *callbackError) Error() string { return e.err.Error() }

// Update applies fn in an optimistic transaction, retrying on conflict
func (s *RedisStore) Update(ctx context.Context, ownerID string, fn UpdateFunc) error {
	key := s.key(ownerID)

	txf := func(tx *redis.Tx) error {
		values, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		state, err := decodeState(values)
		if err != nil {
			return err
		}

		changed, err := fn(&state)
		if err != nil {
			return &callbackError{err: err}
		}
		if !changed {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeState(state))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		var cbErr *callbackError
		if errors.As(err, &cbErr) {
			return cbErr.err
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer committed first, re-read and try again
			continue
		}
		return fmt.Errorf("%w: redis update failed: %v", ErrUnavailable, err)
	}

	return fmt.Errorf("%w: gave up after %d conflicting writes for %s", ErrUnavailable, s.maxRetries, ownerID)
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func encodeState(s State) map[string]interface{} {
	return map[string]interface{}{
		fieldPageViews:   s.PageViewsThisMonth,
		fieldTeamMembers: s.TeamMembersTotal,
		fieldSites:       s.SitesTotal,
		fieldMonth:       s.MonthKey,
	}
}

func decodeState(values map[string]string) (State, error) {
	var s State
	var err error

	if s.PageViewsThisMonth, err = parseCounter(values, fieldPageViews); err != nil {
		return State{}, err
	}
	if s.TeamMembersTotal, err = parseCounter(values, fieldTeamMembers); err != nil {
		return State{}, err
	}
	if s.SitesTotal, err = parseCounter(values, fieldSites); err != nil {
		return State{}, err
	}
	s.MonthKey = values[fieldMonth]
	return s, nil
}

func parseCounter(values map[string]string, field string) (int64, error) {
	raw, ok := values[field]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt %s counter %q", ErrUnavailable, field, raw)
	}
	return n, nil
}
