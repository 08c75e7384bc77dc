package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/flooanalytics/ingest/pkg/plans"
)

var (
	// ErrConfiguration is returned for missing or invalid plan configuration
	ErrConfiguration = errors.New("quota configuration error")
	// ErrUnavailable is returned when quota state cannot be read or written.
	// Callers must treat it as a denial.
	ErrUnavailable = errors.New("quota store unavailable")
)

// EventKind is the name of an incoming event
type EventKind string

// Governed event kinds
const (
	KindPageView        EventKind = "page_view"
	KindTeamMemberAdded EventKind = "team_member_added"
	KindSiteCreated     EventKind = "site_created"
)

// Dimension is a quota dimension with its own counter and ceiling
type Dimension string

const (
	DimensionPageView   Dimension = "page_view"
	DimensionTeamMember Dimension = "team_member"
	DimensionSite       Dimension = "site"
)

// Dimension returns the quota dimension governing k, or false for custom events
func (k EventKind) Dimension() (Dimension, bool) {
	switch k {
	case KindPageView:
		return DimensionPageView, true
	case KindTeamMemberAdded:
		return DimensionTeamMember, true
	case KindSiteCreated:
		return DimensionSite, true
	default:
		return "", false
	}
}

// Governed reports whether k is subject to quota
func (k EventKind) Governed() bool {
	_, ok := k.Dimension()
	return ok
}

// State is the mutable usage record of one owner
type State struct {
	PageViewsThisMonth int64  `json:"page_views_this_month"`
	TeamMembersTotal   int64  `json:"team_members_total"`
	SitesTotal         int64  `json:"sites_total"`
	MonthKey           string `json:"month_key"`
}

// MonthKey returns the UTC year-month key for t
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// rollover resets the monthly counter if month differs from the stored key
func (s *State) rollover(month string) bool {
	if s.MonthKey == month {
		return false
	}
	s.PageViewsThisMonth = 0
	s.MonthKey = month
	return true
}

func (s *State) counter(d Dimension) int64 {
	switch d {
	case DimensionPageView:
		return s.PageViewsThisMonth
	case DimensionTeamMember:
		return s.TeamMembersTotal
	case DimensionSite:
		return s.SitesTotal
	}
	return 0
}

func (s *State) increment(d Dimension) {
	switch d {
	case DimensionPageView:
		s.PageViewsThisMonth++
	case DimensionTeamMember:
		s.TeamMembersTotal++
	case DimensionSite:
		s.SitesTotal++
	}
}

func ceiling(p plans.Plan, d Dimension) int64 {
	switch d {
	case DimensionPageView:
		return p.MaxPageViewsPerMonth
	case DimensionTeamMember:
		return p.MaxTeamMembers
	case DimensionSite:
		return p.MaxSites
	}
	return 0
}

// UsageSnapshot is a read-only view of an owner's usage against its plan
type UsageSnapshot struct {
	ConsumedPageViews   int64  `json:"consumed_page_view"`
	AllowedPageViews    int64  `json:"allowed_page_view"`
	AllowedTeamMembers  int64  `json:"allowed_team_members"`
	AllowedSites        int64  `json:"allowed_sites"`
	ConsumedTeamMembers int64  `json:"consumed_team_members"`
	ConsumedSites       int64  `json:"consumed_sites"`
	Month               string `json:"month"`
}

// DeniedError is returned when an increment would exceed a plan ceiling
type DeniedError struct {
	OwnerID   string
	Dimension Dimension
	Current   int64
	Limit     int64
}

func (e *DeniedError) Error() string {
	switch e.Dimension {
	case DimensionPageView:
		return "Monthly page view limit reached"
	case DimensionTeamMember:
		return "Team member limit reached"
	case DimensionSite:
		return "Site limit reached"
	}
	return fmt.Sprintf("quota exceeded for %s", e.Dimension)
}

// IsDenied checks if an error is a quota denial
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}
