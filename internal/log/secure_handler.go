package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always redacted.
// A verification backend is usually protected by a header or query token,
// so these are the values most likely to end up in a request log.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"access_token":        true,
	"password":            true,
	"secret":              true,
	"token":               true,
	"credentials":         true,
}

// sensitiveKeywords redact any key that contains them.
// The bare word "key" is excluded because it matches too much ("monkey").
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential",
}

// sensitivePatterns match values that are secrets regardless of their key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
}

// emailPattern finds email addresses inside attribute values.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and sanitizes attributes before they
// reach it. Secrets are always replaced by MaskValue. When email masking is
// enabled, addresses keep their first character and domain only, so that a
// verbose log can be shared without leaking the verified list.
type SecureHandler struct {
	handler    slog.Handler
	maskEmails bool
}

// HandlerOption configures a SecureHandler.
type HandlerOption func(*SecureHandler)

// WithEmailMasking enables or disables masking of email addresses.
func WithEmailMasking(enabled bool) HandlerOption {
	return func(h *SecureHandler) {
		h.maskEmails = enabled
	}
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler, opts ...HandlerOption) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	h := &SecureHandler{handler: handler}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled reports whether the underlying handler handles records at level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the sanitized attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), maskEmails: h.maskEmails}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), maskEmails: h.maskEmails}
}

// sanitizeAttr sanitizes a single attribute, recursing into groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if h.maskEmails {
			return slog.String(a.Key, MaskEmails(s))
		}
	case slog.KindAny:
		if h.maskEmails {
			if list, ok := a.Value.Any().([]string); ok {
				masked := make([]string, len(list))
				for i, s := range list {
					masked[i] = MaskEmails(s)
				}
				return slog.Any(a.Key, masked)
			}
		}
	}

	return a
}

// isSensitiveKey checks the key against the exact list and the keywords.
func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(k, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches a secret pattern.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// MaskEmails replaces every email address in s with a masked form that
// keeps the first character of the local part and the full domain:
// "alice@example.com" becomes "a***@example.com".
func MaskEmails(s string) string {
	return emailPattern.ReplaceAllStringFunc(s, func(addr string) string {
		local, domain, _ := strings.Cut(addr, "@")
		if local == "" {
			return "***@" + domain
		}
		return local[:1] + "***@" + domain
	})
}

// NewSecureLogger creates a text slog.Logger that sanitizes its output.
// Verbose sets the level to Debug, otherwise Warn. Email addresses are
// masked unless showEmails is true.
func NewSecureLogger(w io.Writer, verbose, showEmails bool) *slog.Logger {
	return slog.New(NewSecureHandler(
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)}),
		WithEmailMasking(!showEmails),
	))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose, showEmails bool) *slog.Logger {
	return slog.New(NewSecureHandler(
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)}),
		WithEmailMasking(!showEmails),
	))
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
