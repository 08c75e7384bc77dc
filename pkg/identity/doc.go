// Package identity derives pseudonymous visitor and session identifiers from
// request fingerprint data.
//
// # Overview
//
// Nothing is stored. A fingerprint is the verbatim concatenation of the client
// address, user agent, Accept-Language and Accept-Encoding headers. Hashing the
// fingerprint together with a time bucket yields an identifier that is stable
// inside the bucket and rotates when the bucket changes:
//
//   - visitor_id rotates daily (86400 second buckets)
//   - session_id rotates every 30 minutes (1800 second buckets)
//
// Distinct users sharing a fingerprint share identifiers. That is accepted.
//
// # Usage Example
//
//	fp := identity.FingerprintFromRequest(r)
//	id := identity.Derive(fp, time.Now())
//	payload["visitor_id"] = id.VisitorID
//	payload["session_id"] = id.SessionID
package identity
