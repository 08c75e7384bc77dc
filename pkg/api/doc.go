// Package api exposes the ingestion service over HTTP.
//
// Routes:
//
//	ANY      /collect          admit a batch of events (sid, events query parameters)
//	GET      /                 redirect to the homepage
//	ANY      /                 any other method is a collect request, used by the browser beacon
//	POST     /quota/{owner_id} read or increment an owner's usage directly
//	GET      /healthz, /readyz liveness and readiness probes
//	GET      /metrics          Prometheus metrics
//
// Requests for favicons and images are answered with an empty 404. Any other
// path is treated as a collect request.
package api
