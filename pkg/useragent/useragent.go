// Package useragent derives coarse browser and device labels from a
// User-Agent header.
package useragent

import "regexp"

const (
	UnknownBrowser = "Unknown Browser"
	UnknownDevice  = "Unknown Device"
)

type rule struct {
	pattern *regexp.Regexp
	label   string
}

// Rules are evaluated in order and the first match wins. Edge and Opera
// identify as Chrome as well, so Edge is tested first.
var (
	browserRules = []rule{
		{regexp.MustCompile(`(?i)edg`), "Edge"},
		{regexp.MustCompile(`(?i)chrome|crios|crmo`), "Chrome"},
		{regexp.MustCompile(`(?i)firefox|fxios`), "Firefox"},
		{regexp.MustCompile(`(?i)safari`), "Safari"},
		{regexp.MustCompile(`(?i)msie|trident`), "Internet Explorer"},
		{regexp.MustCompile(`(?i)opr|opera`), "Opera"},
	}
	deviceRules = []rule{
		{regexp.MustCompile(`(?i)mobile`), "Mobile"},
		{regexp.MustCompile(`(?i)tablet`), "Tablet"},
		{regexp.MustCompile(`(?i)desktop|windows|macintosh|linux`), "Desktop"},
	}
)

// Info is the classification of one User-Agent
type Info struct {
	Browser string
	Device  string
}

// Classify returns the browser and device labels for ua
func Classify(ua string) Info {
	return Info{
		Browser: match(browserRules, ua, UnknownBrowser),
		Device:  match(deviceRules, ua, UnknownDevice),
	}
}

func match(rules []rule, ua, fallback string) string {
	for _, r := range rules {
		if r.pattern.MatchString(ua) {
			return r.label
		}
	}
	return fallback
}
