package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// VisitorWindow is the rotation period of visitor identifiers
	VisitorWindow = 24 * time.Hour
	// SessionWindow is the rotation period of session identifiers
	SessionWindow = 30 * time.Minute

	// UnknownAddress is used when no client address can be determined
	UnknownAddress = "UNKNOWN_IP"
)

// Fingerprint holds the request fields identifiers are derived from
type Fingerprint struct {
	Address        string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
}

// String concatenates the fingerprint fields without normalization
func (f Fingerprint) String() string {
	return f.Address + f.UserAgent + f.AcceptLanguage + f.AcceptEncoding
}

// Identity is a derived visitor/session pair
type Identity struct {
	VisitorID string `json:"visitor_id"`
	SessionID string `json:"session_id"`
}

// Derive computes the identifiers for fp at time now
func Derive(fp Fingerprint, now time.Time) Identity {
	s := fp.String()
	unix := now.Unix()
	return Identity{
		VisitorID: digest(s, bucket(unix, VisitorWindow)),
		SessionID: digest(s, bucket(unix, SessionWindow)),
	}
}

func bucket(unix int64, window time.Duration) int64 {
	size := int64(window / time.Second)
	// floor division, so pre-epoch times still bucket consistently
	b := unix / size
	if unix%size < 0 {
		b--
	}
	return b
}

func digest(fingerprint string, bucket int64) string {
	sum := sha256.Sum256([]byte(fingerprint + strconv.FormatInt(bucket, 10)))
	return hex.EncodeToString(sum[:])
}

// FingerprintFromRequest builds a fingerprint from an inbound request.
//
// The client address is taken from CF-Connecting-IP, then the first
// X-Forwarded-For hop, then RemoteAddr.
func FingerprintFromRequest(r *http.Request) Fingerprint {
	return Fingerprint{
		Address:        clientAddress(r),
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
	}
}

func clientAddress(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
	return UnknownAddress
}
