package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/flooanalytics/ingest/pkg/admission"
	"github.com/flooanalytics/ingest/pkg/httputil"
	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/owners"
	"github.com/flooanalytics/ingest/pkg/quota"
)

var errBadRequest = errors.New("bad request")

// statusFor maps a domain error to its HTTP status
func statusFor(err error) int {
	switch {
	case quota.IsDenied(err):
		return http.StatusTooManyRequests
	case errors.Is(err, errBadRequest), errors.Is(err, admission.ErrMalformedBatch):
		return http.StatusBadRequest
	case errors.Is(err, owners.ErrSiteNotFound):
		return http.StatusNotFound
	case errors.Is(err, quota.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, quota.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a plain-text response. Unavailable and internal
// errors are logged and their details withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := observability.FromContextOr(r.Context(), s.logger).WithError(err).WithField("status", status)

	switch status {
	case http.StatusServiceUnavailable:
		logger.Warn("Request failed closed")
		httputil.WriteText(w, status, "Service temporarily unavailable")
	case http.StatusInternalServerError:
		logger.Error("Request failed")
		httputil.WriteText(w, status, "Internal server error")
	case http.StatusTooManyRequests:
		var denied *quota.DeniedError
		errors.As(err, &denied)
		httputil.WriteTooManyRequests(w, denied.Error())
	default:
		logger.Debug("Request rejected")
		httputil.WriteText(w, status, err.Error())
	}
}
