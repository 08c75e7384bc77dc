package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/flooanalytics/ingest/pkg/httputil"
	"github.com/flooanalytics/ingest/pkg/quota"
)

const (
	actionRead      = "read"
	actionIncrement = "increment"
)

// QuotaRequest is the body of POST /quota/{owner_id}
type QuotaRequest struct {
	EventType string `json:"event_type"`
	Action    string `json:"action,omitempty"`
	PlanName  string `json:"plan_name"`
	UserID    string `json:"user_id,omitempty"`
}

func (req QuotaRequest) validate(ownerID string) error {
	if req.PlanName == "" {
		return fmt.Errorf("%w: plan_name is required", errBadRequest)
	}
	if req.UserID != "" && req.UserID != ownerID {
		return fmt.Errorf("%w: user_id does not match owner", errBadRequest)
	}
	switch req.Action {
	case actionRead:
		return nil
	case actionIncrement:
		if req.EventType == "" {
			return fmt.Errorf("%w: event_type is required", errBadRequest)
		}
		return nil
	case "":
		if !quota.EventKind(req.EventType).Governed() {
			return fmt.Errorf("%w: unrecognized event_type %q", errBadRequest, req.EventType)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", errBadRequest, req.Action)
	}
}

// handleQuota serves the per-owner actor protocol
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httputil.ParsePathString(r, "owner_id")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	var req QuotaRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	if err := req.validate(ownerID); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	if req.Action == actionRead {
		usage, err := s.quota.ReadUsage(ctx, ownerID, req.PlanName)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		_ = httputil.WriteJSON(w, http.StatusOK, usage)
		return
	}

	if err := s.quota.CheckAndIncrement(ctx, ownerID, quota.EventKind(req.EventType), req.PlanName); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteText(w, http.StatusOK, "ok")
}
