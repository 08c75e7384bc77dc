// Package sink receives admitted events and writes them to durable storage.
//
// Implementations:
//   - MemorySink keeps records in memory for tests and local runs
//   - S3Sink writes one NDJSON object per batch to a bucket
//   - HTTPSink posts rows to a warehouse insert endpoint, optionally with
//     an OAuth2 client-credentials token
//   - AsyncSink moves the durable write of any Sink off the request path
package sink
