// Command quotactl inspects and adjusts owner quota state in Redis.
//
// Usage:
//
//	quotactl [flags] usage <owner_id> <plan>
//	quotactl [flags] check <owner_id> <event_type> <plan>
//	quotactl [flags] plans
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flooanalytics/ingest/pkg/plans"
	"github.com/flooanalytics/ingest/pkg/quota"
	"github.com/flooanalytics/ingest/pkg/storage"
)

// Config holds the command line configuration
type Config struct {
	RedisURL   string
	KeyPrefix  string
	PlansFile  string
	MaxRetries int
	Timeout    time.Duration
	LogLevel   string
}

func main() {
	cfg, args := parseFlags(os.Args[1:])
	logger := setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := run(ctx, cfg, args, os.Stdout, logger); err != nil {
		logger.WithError(err).Error("quotactl failed")
		os.Exit(1)
	}
}

func parseFlags(argv []string) (*Config, []string) {
	cfg := &Config{}
	fs := flag.NewFlagSet("quotactl", flag.ExitOnError)
	fs.StringVar(&cfg.RedisURL, "redis", getEnv("INGEST_REDIS_URL", "redis://localhost:6379/0"), "Redis URL of the quota store")
	fs.StringVar(&cfg.KeyPrefix, "prefix", getEnv("INGEST_QUOTA_KEY_PREFIX", "quota"), "Quota key prefix")
	fs.StringVar(&cfg.PlansFile, "plans", getEnv("INGEST_PLANS_FILE", ""), "YAML plan catalog, built-in plans when empty")
	fs.IntVar(&cfg.MaxRetries, "max-retries", 16, "Maximum optimistic transaction retries")
	fs.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "Overall command timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: quotactl [flags] usage <owner_id> <plan> | check <owner_id> <event_type> <plan> | plans")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argv)
	return cfg, fs.Args()
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func run(ctx context.Context, cfg *Config, args []string, out io.Writer, logger *logrus.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command")
	}

	catalog, err := loadCatalog(cfg.PlansFile)
	if err != nil {
		return err
	}

	switch args[0] {
	case "plans":
		return printPlans(out, catalog)
	case "usage":
		if len(args) != 3 {
			return fmt.Errorf("usage expects <owner_id> <plan>")
		}
	case "check":
		if len(args) != 4 {
			return fmt.Errorf("check expects <owner_id> <event_type> <plan>")
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	actor := quota.NewActor(quota.ActorConfig{Store: store, Catalog: catalog})
	return execute(ctx, actor, args, out, logger)
}

func execute(ctx context.Context, actor *quota.Actor, args []string, out io.Writer, logger *logrus.Logger) error {
	switch args[0] {
	case "usage":
		usage, err := actor.ReadUsage(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(usage)

	case "check":
		ownerID, kind, plan := args[1], quota.EventKind(args[2]), args[3]
		log := logger.WithFields(logrus.Fields{"owner_id": ownerID, "event_type": kind, "plan": plan})
		err := actor.CheckAndIncrement(ctx, ownerID, kind, plan)
		if quota.IsDenied(err) {
			log.Warn("Denied")
			_, werr := fmt.Fprintf(out, "denied: %v\n", err)
			return werr
		}
		if err != nil {
			return err
		}
		log.Info("Admitted")
		_, err = fmt.Fprintln(out, "admitted")
		return err
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func openStore(ctx context.Context, cfg *Config) (quota.Store, func(), error) {
	scfg := storage.DefaultConfig()
	scfg.RedisURL = cfg.RedisURL
	client, err := storage.NewRedisClient(ctx, scfg)
	if err != nil {
		return nil, nil, err
	}
	return quota.NewRedisStore(client, cfg.KeyPrefix, cfg.MaxRetries), func() { _ = client.Close() }, nil
}

func loadCatalog(path string) (*plans.MemoryCatalog, error) {
	if path == "" {
		return plans.NewMemoryCatalog(plans.DefaultPlans()...)
	}
	return plans.LoadFile(path)
}

func printPlans(out io.Writer, catalog *plans.MemoryCatalog) error {
	names := catalog.Names()
	sort.Strings(names)
	for _, name := range names {
		p, err := catalog.Lookup(context.Background(), name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%-12s page_views=%d sites=%d team_members=%d\n",
			p.Name, p.MaxPageViewsPerMonth, p.MaxSites, p.MaxTeamMembers); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
