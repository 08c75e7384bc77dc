package quota

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/plans"
)

// setupRedisStoreTest creates a miniredis instance and a store on top of it
func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return NewRedisStore(client, "test-quota", 0), mr
}

func TestRedisStore_GetMissingIsZero(t *testing.T) {
	store, _ := setupRedisStoreTest(t)

	s, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, State{}, s)
}

func TestRedisStore_UpdateRoundTrip(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	ctx := context.Background()

	err := store.Update(ctx, "o1", func(s *State) (bool, error) {
		s.PageViewsThisMonth = 4
		s.TeamMembersTotal = 2
		s.SitesTotal = 1
		s.MonthKey = "2026-07"
		return true, nil
	})
	require.NoError(t, err)

	s, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, State{PageViewsThisMonth: 4, TeamMembersTotal: 2, SitesTotal: 1, MonthKey: "2026-07"}, s)
	assert.Equal(t, "4", mr.HGet("test-quota:o1", fieldPageViews))
}

func TestRedisStore_UnchangedIsNotWritten(t *testing.T) {
	store, mr := setupRedisStoreTest(t)

	err := store.Update(context.Background(), "o1", func(s *State) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test-quota:o1"))
}

func TestRedisStore_CallbackErrorReturnedVerbatim(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	boom := errors.New("boom")

	err := store.Update(context.Background(), "o1", func(s *State) (bool, error) {
		return true, boom
	})
	assert.Same(t, boom, err)
}

func TestRedisStore_CorruptCounter(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	mr.HSet("test-quota:o1", fieldPageViews, "not-a-number")

	_, err := store.Get(context.Background(), "o1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRedisStore_Unreachable(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	mr.Close()

	_, err := store.Get(context.Background(), "o1")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = store.Update(context.Background(), "o1", func(s *State) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStore_ActorsOnSeparateReplicasNeverDoubleAdmit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	catalog, err := plans.NewMemoryCatalog(plans.Plan{Name: "tight", MaxPageViewsPerMonth: 10, MaxSites: 1, MaxTeamMembers: 1})
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }

	// Two actors with separate lock tables simulate two service replicas
	var actors []*Actor
	for i := 0; i < 2; i++ {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		actors = append(actors, NewActor(ActorConfig{
			Store:   NewRedisStore(client, "quota", 1000),
			Catalog: catalog,
			Now:     now,
			Logger:  observability.NewLogger(observability.ErrorLevel, io.Discard),
		}))
	}

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := actors[i%2].CheckAndIncrement(context.Background(), "shared", KindPageView, "tight")
			if err == nil {
				admitted.Add(1)
			} else if !IsDenied(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
	assert.Equal(t, "10", mr.HGet("quota:shared", fieldPageViews))
}
