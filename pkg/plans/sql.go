package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLCatalog reads plans from a relational plans table
type SQLCatalog struct {
	db *sql.DB
}

// NewSQLCatalog creates a catalog backed by db
func NewSQLCatalog(db *sql.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

// Lookup returns the plan with the given name
func (c *SQLCatalog) Lookup(ctx context.Context, name string) (Plan, error) {
	query := `
		SELECT name, max_page_views, max_sites, max_team_members
		FROM plans
		WHERE name = $1
	`
	var p Plan
	err := c.db.QueryRowContext(ctx, query, name).Scan(
		&p.Name, &p.MaxPageViewsPerMonth, &p.MaxSites, &p.MaxTeamMembers,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, unknownPlan(name)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}
