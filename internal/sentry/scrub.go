// Package sentry configures error reporting and scrubs credentials from
// events before they leave the process.
package sentry

import (
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const filtered = "[Filtered]"

// sensitiveHeaders are HTTP headers that should be redacted, compared case-insensitively.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
}

// sensitiveKeys are field names that may carry credentials in tags, extra,
// breadcrumb data or query strings. Compared case-insensitively.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwordhash":  true,
	"token":         true,
	"secret":        true,
	"admincode":     true,
	"jwt":           true,
	"authorization": true,
	"cookie":        true,
}

// Init enables reporting when dsn is set. It reports whether the SDK was initialised.
func Init(dsn, environment string) (bool, error) {
	if dsn == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:                   dsn,
		Environment:           environment,
		AttachStacktrace:      true,
		SendDefaultPII:        false,
		BeforeSend:            ScrubEvent,
		BeforeSendTransaction: ScrubTransaction,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// ScrubEvent removes sensitive data from a Sentry event before it is sent.
// It redacts headers and query parameters, strips request bodies, and scrubs tags.
func ScrubEvent(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for header := range event.Request.Headers {
			if sensitiveHeaders[strings.ToLower(header)] {
				event.Request.Headers[header] = filtered
			}
		}
		event.Request.Cookies = ""
		// bodies carry passwords and admin codes
		event.Request.Data = ""
		event.Request.QueryString = scrubQuery(event.Request.QueryString)
		event.Request.URL = scrubURL(event.Request.URL)
	}

	for key := range event.Tags {
		if isSensitiveKey(key) {
			event.Tags[key] = filtered
		}
	}
	for key := range event.Extra {
		if isSensitiveKey(key) {
			event.Extra[key] = filtered
		}
	}

	for i := range event.Breadcrumbs {
		for key := range event.Breadcrumbs[i].Data {
			if isSensitiveKey(key) {
				event.Breadcrumbs[i].Data[key] = filtered
			}
		}
	}

	return event
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// scrubQuery redacts sensitive parameters such as the socket ?token=.
func scrubQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return filtered
	}
	for key := range values {
		if isSensitiveKey(key) {
			values[key] = []string{filtered}
		}
	}
	return values.Encode()
}

func scrubURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	u.RawQuery = scrubQuery(u.RawQuery)
	return u.String()
}

// ScrubTransaction applies the same scrubbing logic to transaction events.
func ScrubTransaction(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	return ScrubEvent(event, hint)
}
