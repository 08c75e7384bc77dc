package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/flooanalytics/ingest/pkg/admission"
	"github.com/flooanalytics/ingest/pkg/contextkeys"
	"github.com/flooanalytics/ingest/pkg/httputil"
)

// handleCollect admits the events of one beacon.
//
// 200 "ok" for an empty batch, 200 "OK" when every event was admitted,
// otherwise the status of the first denial or error.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	received := s.now()

	raw, err := eventsParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := admission.ParseEvents(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(events) == 0 {
		httputil.WriteText(w, http.StatusOK, "ok")
		return
	}

	siteID := strings.TrimSpace(httputil.ParseQueryString(r, "sid", ""))
	if siteID == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing sid", errBadRequest))
		return
	}

	ctx, cancel := context.WithTimeout(contextkeys.WithSiteID(r.Context(), siteID), s.requestTimeout)
	defer cancel()

	if _, err := s.admitter.Admit(ctx, siteID, events, admission.RequestContextFromHTTP(r, received)); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteText(w, http.StatusOK, "OK")
}

// eventsParam returns the events parameter from the query or form, falling
// back to a raw text or JSON body for POST requests.
func eventsParam(r *http.Request) (string, error) {
	if v := r.URL.Query().Get("events"); v != "" {
		return v, nil
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return "", nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return r.FormValue("events"), nil
	case "", "text/plain", "application/json":
		body, err := io.ReadAll(io.LimitReader(r.Body, httputil.MaxBodyBytes+1))
		if err != nil {
			return "", fmt.Errorf("%w: reading body: %v", errBadRequest, err)
		}
		if len(body) > httputil.MaxBodyBytes {
			return "", fmt.Errorf("%w: body too large", errBadRequest)
		}
		return string(body), nil
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", errBadRequest, mediaType)
	}
}
