package client

import (
	"net/url"
	"regexp"
	"strings"
)

// SessionKey is the query parameter naming the session, as emitted by SSE server transports.
const SessionKey = "session_id"

var patterns = map[string]*regexp.Regexp{SessionKey: sessionPattern(SessionKey)}

func sessionPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[?&])` + regexp.QuoteMeta(key) + `=([^&#\s]+)`)
}

// ExtractSessionID returns the session identifier carried by an endpoint fragment under exactly key.
func ExtractSessionID(fragment string, key string) (string, bool) {
	pattern, ok := patterns[key]
	if !ok {
		pattern = sessionPattern(key)
	}
	match := pattern.FindStringSubmatch(strings.TrimSpace(fragment))
	if len(match) < 2 {
		return "", false
	}
	if id, err := url.QueryUnescape(match[1]); err == nil {
		return id, true
	}
	return match[1], true
}

// MessageURL resolves an endpoint fragment against the stream URL
func MessageURL(streamURL *url.URL, fragment string) (*url.URL, error) {
	reference, err := url.Parse(strings.TrimSpace(fragment))
	if err != nil {
		return nil, err
	}
	return streamURL.ResolveReference(reference), nil
}

// WithSession returns a copy of URL carrying key=id in its query
func WithSession(URL *url.URL, key string, id string) *url.URL {
	result := *URL
	query := result.Query()
	query.Set(key, id)
	result.RawQuery = query.Encode()
	return &result
}
