// Package config loads the ingestion service configuration from environment
// variables with defaults for every setting.
//
// Server settings:
//
//	INGEST_HOST="0.0.0.0"
//	INGEST_PORT="8080"
//	INGEST_HOMEPAGE_URL="https://www.example.com"
//	INGEST_CORS_ORIGINS="*"
//
// Quota settings:
//
//	INGEST_QUOTA_STORE="redis"          # memory, redis
//	INGEST_REDIS_URL="redis://localhost:6379/0"
//	INGEST_QUOTA_MAX_RETRIES="16"
//	INGEST_QUOTA_LOCK_TIMEOUT="5s"
//
// Plans and owners:
//
//	INGEST_PLANS_SOURCE="file"          # default, file, database
//	INGEST_PLANS_FILE="/etc/ingest/plans.yaml"
//	INGEST_PLANS_CACHE_PURGE="@every 5m"
//	INGEST_OWNERS_SOURCE="database"     # static, database
//	INGEST_DATABASE_DRIVER="postgres"   # postgres, sqlite3
//	INGEST_DATABASE_URL="postgres://localhost/ingest?sslmode=disable"
//
// Sink settings:
//
//	INGEST_SINK_TYPE="s3"               # memory, s3, http
//	INGEST_SINK_ASYNC="true"
//	INGEST_S3_BUCKET="ingest-events"
//	INGEST_HTTP_SINK_URL="https://warehouse.example.com/insert"
//	INGEST_HTTP_SINK_TOKEN_URL="https://auth.example.com/oauth/token"
//
// Observability settings:
//
//	INGEST_LOG_LEVEL="info"             # debug, info, warn, error
//	INGEST_OTEL_ENABLED="true"
//	INGEST_OTEL_ENDPOINT="otel-collector:4317"
package config
