package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{"valid", Plan{Name: "free", MaxPageViewsPerMonth: 10, MaxSites: 1, MaxTeamMembers: 1}, false},
		{"zero ceilings allowed", Plan{Name: "frozen"}, false},
		{"missing name", Plan{MaxSites: 1}, true},
		{"negative page views", Plan{Name: "bad", MaxPageViewsPerMonth: -1}, true},
		{"negative sites", Plan{Name: "bad", MaxSites: -1}, true},
		{"negative members", Plan{Name: "bad", MaxTeamMembers: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPlan)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultPlans_AreValid(t *testing.T) {
	catalog, err := NewMemoryCatalog(DefaultPlans()...)
	require.NoError(t, err)

	free, err := catalog.Lookup(context.Background(), PlanFree)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), free.MaxPageViewsPerMonth)
	assert.ElementsMatch(t, []string{PlanFree, PlanPro, PlanBusiness}, catalog.Names())
}

func TestMemoryCatalog_UnknownPlan(t *testing.T) {
	catalog, err := NewMemoryCatalog(DefaultPlans()...)
	require.NoError(t, err)

	_, err = catalog.Lookup(context.Background(), "platinum")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPlan))
	assert.Contains(t, err.Error(), "platinum")
}

func TestMemoryCatalog_ReplaceKeepsOldOnError(t *testing.T) {
	catalog, err := NewMemoryCatalog(Plan{Name: "a", MaxSites: 1})
	require.NoError(t, err)

	err = catalog.Replace([]Plan{{Name: "b"}, {Name: "b"}})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = catalog.Lookup(context.Background(), "a")
	assert.NoError(t, err, "failed replace must keep previous contents")
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
plans:
  - name: starter
    max_page_views: 2
    max_sites: 1
    max_team_members: 1
  - name: team
    max_page_views: 500
    max_sites: 3
    max_team_members: 10
`)
	plans, err := ParseYAML(doc)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, Plan{Name: "starter", MaxPageViewsPerMonth: 2, MaxSites: 1, MaxTeamMembers: 1}, plans[0])
	assert.Equal(t, int64(10), plans[1].MaxTeamMembers)
}

func TestParseYAML_Invalid(t *testing.T) {
	_, err := ParseYAML([]byte("plans: [oops"))
	assert.Error(t, err)
}
