package admission

import (
	"net/http"
	"time"

	"github.com/flooanalytics/ingest/pkg/identity"
)

// Edge headers carrying the client location
const (
	HeaderCountry = "CF-IPCountry"
	HeaderCity    = "CF-IPCity"
	HeaderRegion  = "CF-Region"
)

// RequestContext is the per-request information used to enrich events
type RequestContext struct {
	Fingerprint identity.Fingerprint
	CountryCode string
	City        string
	Region      string
	// Received is the arrival time used for identity windows and record timestamps
	Received time.Time
}

// RequestContextFromHTTP extracts the fingerprint and location of r
func RequestContextFromHTTP(r *http.Request, received time.Time) RequestContext {
	return RequestContext{
		Fingerprint: identity.FingerprintFromRequest(r),
		CountryCode: r.Header.Get(HeaderCountry),
		City:        r.Header.Get(HeaderCity),
		Region:      r.Header.Get(HeaderRegion),
		Received:    received,
	}
}
