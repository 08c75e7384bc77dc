package owners

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const resolveQuery = `
	SELECT o.id, o.plan_name
	FROM sites s
	JOIN owners o ON o.id = s.owner_id
	WHERE s.id = $1`

// SQLResolver resolves sites from the sites and owners tables
type SQLResolver struct {
	db *sql.DB
}

// NewSQLResolver creates a resolver over db
func NewSQLResolver(db *sql.DB) *SQLResolver {
	return &SQLResolver{db: db}
}

// Resolve implements Resolver
func (r *SQLResolver) Resolve(ctx context.Context, siteID string) (Owner, error) {
	var owner Owner
	err := r.db.QueryRowContext(ctx, resolveQuery, siteID).Scan(&owner.ID, &owner.PlanName)
	if errors.Is(err, sql.ErrNoRows) {
		return Owner{}, fmt.Errorf("%w: %s", ErrSiteNotFound, siteID)
	}
	if err != nil {
		return Owner{}, fmt.Errorf("failed to resolve site %s: %w", siteID, err)
	}
	return owner, nil
}
