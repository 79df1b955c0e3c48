// Package logging configures the process-wide slog logger and provides helpers
// for request-scoped fields, security events, and stack-traced errors.
package logging

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// SecurityEvent represents a security-related event type
type SecurityEvent string

const (
	SecurityEventMissingAuth     SecurityEvent = "missing_auth"
	SecurityEventInvalidAuthFmt  SecurityEvent = "invalid_auth_format"
	SecurityEventInvalidJWT      SecurityEvent = "invalid_jwt"
	SecurityEventNonAdminAccess  SecurityEvent = "non_admin_access"
	SecurityEventNotSessionAdmin SecurityEvent = "not_session_admin"
	SecurityEventRateLimited     SecurityEvent = "rate_limited"
	SecurityEventBadCredentials  SecurityEvent = "bad_credentials"
	SecurityEventBadAdminCode    SecurityEvent = "bad_admin_code"
	SecurityEventSocketRejected  SecurityEvent = "socket_rejected"
)

// RequestAttrs holds safe request context for logging
type RequestAttrs struct {
	Method string
	Path   string
	IP     string
	UserID string
	Role   string
}

type contextKey string

const requestAttrsKey contextKey = "requestAttrs"

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// Initialize sets up the global slog with a JSON handler on stdout.
// The level comes from LOGGING_LEVEL (debug, info, warn, error; defaults to info).
func Initialize() {
	slog.SetDefault(New(os.Stdout, os.Getenv("LOGGING_LEVEL")))
}

// New builds a JSON logger writing to w that renders errors with stack traces.
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       decodeLogLevel(strings.ToLower(strings.TrimSpace(level))),
		ReplaceAttr: replaceAttr,
	})
	return slog.New(handler)
}

func decodeLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr formats any error-valued attribute as {msg, trace}.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = fmtErr(err)
	}
	return a
}

func marshalStack(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	s := make([]stackFrame, len(frames))
	for i, v := range frames {
		s[i] = stackFrame{
			Source: filepath.Join(
				filepath.Base(filepath.Dir(v.File)),
				filepath.Base(v.File),
			),
			Func: filepath.Base(v.Function),
			Line: v.Line,
		}
	}
	return s
}

func fmtErr(err error) slog.Value {
	groupValues := []slog.Attr{slog.String("msg", err.Error())}
	if frames := marshalStack(err); frames != nil {
		groupValues = append(groupValues, slog.Any("trace", frames))
	}
	return slog.GroupValue(groupValues...)
}

// WrapError wraps an error with a message and captures stack trace
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := xerrors.WithStackTrace(err, 1)
	return xerrors.Newf("%s: %v", msg, wrapped)
}

// WithRequestAttrs adds request attributes to context
func WithRequestAttrs(ctx context.Context, attrs *RequestAttrs) context.Context {
	return context.WithValue(ctx, requestAttrsKey, attrs)
}

// GetRequestAttrs retrieves request attributes from context
func GetRequestAttrs(ctx context.Context) *RequestAttrs {
	attrs, _ := ctx.Value(requestAttrsKey).(*RequestAttrs)
	return attrs
}

// UpdateRequestAttrs returns a context carrying a copy of the request attributes
// with the authenticated user filled in.
func UpdateRequestAttrs(ctx context.Context, userID, role string) context.Context {
	updated := RequestAttrs{}
	if attrs := GetRequestAttrs(ctx); attrs != nil {
		updated = *attrs
	}
	updated.UserID = userID
	updated.Role = role
	return WithRequestAttrs(ctx, &updated)
}

// RequestFields extracts slog attrs from context
func RequestFields(ctx context.Context) []any {
	attrs := GetRequestAttrs(ctx)
	if attrs == nil {
		return nil
	}

	fields := []any{
		slog.String("method", attrs.Method),
		slog.String("path", attrs.Path),
		slog.String("ip", attrs.IP),
	}
	if attrs.UserID != "" {
		fields = append(fields, slog.String("user_id", attrs.UserID))
	}
	if attrs.Role != "" {
		fields = append(fields, slog.String("role", attrs.Role))
	}
	return fields
}

// ExtractClientIP returns the client IP. X-Real-IP is only trusted because the
// RealIP middleware overwrites it for every request.
func ExtractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LogSecurityEvent logs a WARN-level security event with context
func LogSecurityEvent(ctx context.Context, event SecurityEvent, msg string) {
	fields := RequestFields(ctx)
	fields = append(fields, slog.String("security_event", string(event)))
	slog.WarnContext(ctx, msg, fields...)
}

// LogErrorWithStatus logs an ERROR-level message with context, status, and error
func LogErrorWithStatus(ctx context.Context, status int, msg string, err error) {
	fields := RequestFields(ctx)
	fields = append(fields, slog.Int("status", status))
	if err != nil {
		fields = append(fields, slog.Any("error", err))
	}
	slog.ErrorContext(ctx, msg, fields...)
}
