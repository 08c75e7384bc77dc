// Package httputil provides HTTP helpers shared by the ingestion endpoints:
// response writers for JSON and plain text bodies, request parsing and
// middleware for request IDs, access logging, panic recovery and CORS.
package httputil
