package admission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flooanalytics/ingest/pkg/identity"
	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/owners"
	"github.com/flooanalytics/ingest/pkg/quota"
	"github.com/flooanalytics/ingest/pkg/sink"
	"github.com/flooanalytics/ingest/pkg/useragent"
)

// Quota decides whether one event may be recorded for an owner.
// *quota.Actor implements it.
type Quota interface {
	CheckAndIncrement(ctx context.Context, ownerID string, kind quota.EventKind, planName string) error
}

// Config configures a Router
type Config struct {
	Quota    Quota
	Resolver owners.Resolver
	Sink     sink.Sink
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Tracer   trace.Tracer

	// SinkTimeout bounds the sink write. The write is detached from the
	// request context so admitted events are recorded after a request
	// deadline.
	SinkTimeout time.Duration
}

const defaultSinkTimeout = 10 * time.Second

// Router admits batches of events
type Router struct {
	quota    Quota
	resolver owners.Resolver
	sink     sink.Sink
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer

	sinkTimeout time.Duration
}

// NewRouter creates a Router
func NewRouter(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.Tracer()
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	return &Router{
		quota:    cfg.Quota,
		resolver: cfg.Resolver,
		sink:     cfg.Sink,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,

		sinkTimeout: cfg.SinkTimeout,
	}
}

// Result describes what happened to a batch
type Result struct {
	SiteID  string
	OwnerID string
	// Total is the number of events in the batch
	Total int
	// Accepted is the number of events forwarded to the sink
	Accepted int
}

// Admit runs the batch through the quota actor in input order.
//
// It returns nil when every event was admitted and forwarded. On the first
// denial or error it stops, forwards the events admitted so far and returns
// that denial or error unchanged. Resolver failures other than
// owners.ErrSiteNotFound, and sink failures, are reported as
// quota.ErrUnavailable.
func (r *Router) Admit(ctx context.Context, siteID string, events []Event, rc RequestContext) (*Result, error) {
	res := &Result{SiteID: siteID, Total: len(events)}
	if len(events) == 0 {
		return res, nil
	}

	ctx, span := r.tracer.Start(ctx, "admission.Admit", trace.WithAttributes(
		attribute.String("site.id", siteID),
		attribute.Int("batch.size", len(events)),
	))
	defer span.End()

	r.metrics.RecordBatchSize(len(events))

	owner, err := r.resolver.Resolve(ctx, siteID)
	if err != nil {
		if !errors.Is(err, owners.ErrSiteNotFound) {
			err = fmt.Errorf("%w: %w", quota.ErrUnavailable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return res, err
	}
	res.OwnerID = owner.ID
	span.SetAttributes(attribute.String("owner.id", owner.ID), attribute.String("owner.plan", owner.PlanName))

	logger := observability.FromContextOr(ctx, r.logger).WithFields(map[string]interface{}{
		"site_id":  siteID,
		"owner_id": owner.ID,
	})

	ids := identity.Derive(rc.Fingerprint, rc.Received)
	ua := useragent.Classify(rc.Fingerprint.UserAgent)

	accepted := make([]sink.Record, 0, len(events))
	var stopErr error
	for _, ev := range events {
		kind := quota.EventKind(ev.Name)
		if err := r.quota.CheckAndIncrement(ctx, owner.ID, kind, owner.PlanName); err != nil {
			r.metrics.RecordAdmission(metricEventType(kind), outcome(err))
			stopErr = err
			break
		}
		r.metrics.RecordAdmission(metricEventType(kind), "accepted")
		accepted = append(accepted, sink.Record{
			EventType: ev.Name,
			Payload:   enrich(ev.Payload, ids, ua, rc),
			Timestamp: rc.Received,
		})
	}
	res.Accepted = len(accepted)
	span.SetAttributes(attribute.Int("batch.accepted", res.Accepted))

	if len(accepted) > 0 {
		if err := r.forward(ctx, siteID, accepted); err != nil {
			span.RecordError(err)
			if stopErr == nil {
				span.SetStatus(codes.Error, "sink failed")
				logger.WithError(err).Error("Failed to forward admitted events")
				return res, fmt.Errorf("%w: sink: %w", quota.ErrUnavailable, err)
			}
			logger.WithError(err).Error("Failed to forward admitted prefix of a stopped batch")
		}
	}

	if stopErr != nil {
		if quota.IsDenied(stopErr) {
			span.SetAttributes(attribute.Bool("batch.denied", true))
			logger.WithField("accepted", res.Accepted).Debug("Batch stopped by quota")
		} else {
			span.RecordError(stopErr)
			span.SetStatus(codes.Error, "quota check failed")
			logger.WithError(stopErr).Warn("Batch stopped by quota error")
		}
		return res, stopErr
	}
	return res, nil
}

// forward appends the admitted records. Their increments are already
// committed, so the write outlives a cancelled or expired request.
func (r *Router) forward(ctx context.Context, siteID string, records []sink.Record) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sinkTimeout)
	defer cancel()
	return r.sink.Append(ctx, siteID, records)
}

// enrich copies payload and adds identity, user-agent and location fields.
// Enrichment fields overwrite client-supplied keys of the same name.
func enrich(payload map[string]any, ids identity.Identity, ua useragent.Info, rc RequestContext) map[string]any {
	out := make(map[string]any, len(payload)+8)
	for k, v := range payload {
		out[k] = v
	}
	out["browser"] = ua.Browser
	out["device_type"] = ua.Device
	out["user_agent"] = rc.Fingerprint.UserAgent
	out["visitor_id"] = ids.VisitorID
	out["session_id"] = ids.SessionID
	setIfPresent(out, "country_code", rc.CountryCode)
	setIfPresent(out, "city", rc.City)
	setIfPresent(out, "region", rc.Region)
	return out
}

func setIfPresent(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func metricEventType(kind quota.EventKind) string {
	if kind.Governed() {
		return string(kind)
	}
	return "custom"
}

func outcome(err error) string {
	if quota.IsDenied(err) {
		return "denied"
	}
	return "error"
}
