package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/flooanalytics/ingest/pkg/config"
	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/owners"
	"github.com/flooanalytics/ingest/pkg/plans"
	"github.com/flooanalytics/ingest/pkg/quota"
	"github.com/flooanalytics/ingest/pkg/sink"
	"github.com/flooanalytics/ingest/pkg/storage"
)

// deps builds the backends selected by the configuration. The SQL database and
// Redis client are opened at most once and shared.
type deps struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	health   *observability.HealthChecker
	shutdown *observability.ShutdownManager

	db    *sql.DB
	redis *redis.Client
}

func (d *deps) database(ctx context.Context) (*sql.DB, error) {
	if d.db != nil {
		return d.db, nil
	}
	db, err := storage.OpenDatabase(ctx, d.cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	d.db = db
	d.health.AddCheck("database", true, observability.DatabaseCheck(db))
	d.shutdown.Register("database", func(context.Context) error { return db.Close() })
	return db, nil
}

func (d *deps) redisClient(ctx context.Context) (*redis.Client, error) {
	if d.redis != nil {
		return d.redis, nil
	}
	client, err := storage.NewRedisClient(ctx, d.cfg.Storage)
	if err != nil {
		return nil, err
	}
	d.redis = client
	d.health.AddCheck("redis", true, observability.RedisCheck(client))
	d.shutdown.Register("redis", func(context.Context) error { return client.Close() })
	return client, nil
}

func (d *deps) quotaStore(ctx context.Context) (quota.Store, error) {
	switch d.cfg.Quota.Store {
	case "redis":
		client, err := d.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return quota.NewRedisStore(client, d.cfg.Quota.KeyPrefix, d.cfg.Quota.MaxRetries), nil
	default:
		d.logger.Warn("Using in-memory quota store, usage is lost on restart and not shared between replicas")
		return quota.NewMemoryStore(), nil
	}
}

// catalog builds the plan catalog. File watching runs on g until ctx is done.
func (d *deps) catalog(ctx context.Context, g *errgroup.Group) (plans.Catalog, error) {
	pc := d.cfg.Plans

	var base plans.Catalog
	switch pc.Source {
	case "file":
		mem, err := plans.LoadFile(pc.File)
		if err != nil {
			return nil, err
		}
		if pc.Watch {
			g.Go(func() error {
				if err := mem.WatchFile(ctx, pc.File, d.logger); err != nil {
					d.logger.WithError(err).Warn("Plan file watch stopped")
				}
				return nil
			})
		}
		// a reloaded file is visible immediately, no cache in front
		return mem, nil
	case "database":
		db, err := d.database(ctx)
		if err != nil {
			return nil, err
		}
		base = plans.NewSQLCatalog(db)
	default:
		mem, err := plans.NewMemoryCatalog(plans.DefaultPlans()...)
		if err != nil {
			return nil, err
		}
		return mem, nil
	}

	cached := plans.NewCachedCatalog(base, pc.CacheSize, pc.CacheTTL)
	if pc.PurgeSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(pc.PurgeSchedule, func() {
			n := cached.Len()
			cached.Purge()
			d.logger.WithField("plans", n).Debug("Purged plan cache")
		}); err != nil {
			return nil, fmt.Errorf("invalid plan cache purge schedule %q: %w", pc.PurgeSchedule, err)
		}
		c.Start()
		d.shutdown.Register("plan-cache-purge", func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return cached, nil
}

func (d *deps) resolver(ctx context.Context) (owners.Resolver, error) {
	oc := d.cfg.Owners
	switch oc.Source {
	case "database":
		db, err := d.database(ctx)
		if err != nil {
			return nil, err
		}
		return owners.NewCachedResolver(owners.NewSQLResolver(db), oc.CacheSize, oc.CacheTTL, d.metrics), nil
	default:
		return owners.ParseStatic(oc.Static)
	}
}

func (d *deps) sink(ctx context.Context) (sink.Sink, error) {
	sc := d.cfg.Sink

	var (
		out sink.Sink
		err error
	)
	switch sc.Type {
	case "s3":
		out, err = sink.NewS3Sink(ctx, sink.S3Config{
			Bucket:       sc.S3Bucket,
			Region:       sc.S3Region,
			Endpoint:     sc.S3Endpoint,
			AccessKey:    sc.S3AccessKey,
			SecretKey:    sc.S3SecretKey,
			UsePathStyle: sc.S3UsePathStyle,
			Prefix:       sc.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
	case "http":
		out = sink.NewHTTPSink(ctx, sink.HTTPConfig{
			URL:          sc.HTTPURL,
			TokenURL:     sc.HTTPTokenURL,
			ClientID:     sc.HTTPClientID,
			ClientSecret: sc.HTTPClientSecret,
			Scopes:       sc.HTTPScopes,
			Timeout:      sc.WriteTimeout,
		})
	default:
		d.logger.Warn("Using in-memory sink, admitted events are kept in process only")
		out = sink.NewMemorySink()
	}
	out = sink.NewInstrumented(sc.Type, out, d.metrics)

	if !sc.Async {
		return out, nil
	}
	// the pool outlives request contexts and is drained by Close
	asyncSink := sink.NewAsyncSink(context.WithoutCancel(ctx), out, sink.AsyncConfig{
		Workers:      sc.Workers,
		QueueSize:    sc.QueueSize,
		WriteTimeout: sc.WriteTimeout,
		Logger:       d.logger,
		Metrics:      d.metrics,
	})
	d.shutdown.Register("sink", asyncSink.Close)
	return asyncSink, nil
}
