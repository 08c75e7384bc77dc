// Package storage opens the shared backing connections of the service: the
// SQL database holding owners, sites and plans (PostgreSQL in production,
// SQLite for local runs) and the Redis client used by the quota store.
package storage
