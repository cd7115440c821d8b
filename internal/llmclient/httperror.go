package llmclient

import (
	"fmt"
	"strconv"
	"time"
)

// HTTPError is returned by doRequest when the Critic/Assistant endpoint
// responds with any status other than 200 OK. Status and Body are preserved so callers
// can build the spec's critic_http_<status> code without re-parsing.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter accepts either a delta-seconds value or an HTTP-date and
// returns the wait duration, or 0 if the header is absent or unparseable.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
