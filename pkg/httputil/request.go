package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// MaxBodyBytes bounds JSON request bodies
const MaxBodyBytes = 1 << 20

// ErrEmptyBody is returned by ParseJSON for a request without a body
var ErrEmptyBody = errors.New("request body is empty")

// ParseJSON decodes the request body into dest, rejecting unknown fields
// and trailing data.
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// ParseJSONOrError decodes the body and writes a 400 on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathString returns a required, non-blank mux path variable
func ParsePathString(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(mux.Vars(r)[key])
	if value == "" {
		return "", fmt.Errorf("missing %s", key)
	}
	return value, nil
}

// ParseQueryString returns a query value from the URL or, for POST forms,
// the body. defaultVal is returned when absent.
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return defaultVal
}
