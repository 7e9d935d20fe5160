package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "***REDACTED***"

// Log output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// headerKeys are HTTP headers carrying credentials.
var headerKeys = []string{
	"authorization", "proxy-authorization",
	"cookie", "set-cookie",
	"x-api-key", "x-auth-token", "x-csrf-token",
}

// credentialKeys are generic credential and session names.
var credentialKeys = []string{
	"password", "passwd", "secret", "token", "auth",
	"api_key", "apikey", "api-key",
	"access_token", "refresh_token",
	"private_key", "privatekey", "secret_key", "secretkey",
	"session", "session_id", "sessionid", "sid", "jsessionid",
	"credential", "credentials",
}

// shareFormKeys are fields the share endpoints post next to the shared URL.
// Facebook: fb_dtsg, jazoest, lsd, __user, c_user, xs.
// Twitter: authenticity_token, oauth_signature. Pocket: consumer_key.
var shareFormKeys = []string{
	"fb_dtsg", "jazoest", "lsd", "__user", "c_user", "xs",
	"authenticity_token", "oauth_signature", "csrf", "csrf_token",
	"consumer_key",
}

// sensitiveKeywords mark a key as sensitive when contained anywhere in it.
// The bare word "key" is left out: it matches primary_key, cache_key and
// the like. Specific *_key names live in the key lists above.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth",
	"credential", "private", "csrf", "cookie",
}

// sensitivePatterns match secret values whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),  // opaque API keys
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`), // AWS access key
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
	regexp.MustCompile(`^[0-9]{5,}-[0-9a-f]{24}$`), // Pocket consumer key
}

// redactor decides which attributes are masked.
type redactor struct {
	keys     map[string]struct{}
	keywords []string
	patterns []*regexp.Regexp
}

// defaultRedactor masks the header, credential and share form keys.
var defaultRedactor = newRedactor(headerKeys, credentialKeys, shareFormKeys)

func newRedactor(keyLists ...[]string) *redactor {
	r := &redactor{
		keys:     make(map[string]struct{}),
		keywords: sensitiveKeywords,
		patterns: sensitivePatterns,
	}
	for _, list := range keyLists {
		for _, k := range list {
			r.keys[k] = struct{}{}
		}
	}
	return r
}

// sensitiveKey reports whether key names a credential. Matching is
// case-insensitive.
func (r *redactor) sensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if _, ok := r.keys[key]; ok {
		return true
	}
	return containsSensitiveKeyword(key)
}

// sensitiveValue reports whether value looks like a secret on its own.
func (r *redactor) sensitiveValue(value string) bool {
	for _, p := range r.patterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// redactQuery masks sensitive query parameters of an absolute URL, such as
// access_token on a share dialog URL. ok is false when nothing was masked.
// The query is rewritten in place so parameter order survives.
func (r *redactor) redactQuery(raw string) (string, bool) {
	base, query, found := strings.Cut(raw, "?")
	if !found || !strings.Contains(base, "://") {
		return raw, false
	}
	query, fragment, hasFragment := strings.Cut(query, "#")

	pairs := strings.Split(query, "&")
	masked := false
	for i, pair := range pairs {
		name, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(name); err == nil && r.sensitiveKey(decoded) {
			pairs[i] = name + "=" + MaskValue
			masked = true
		}
	}
	if !masked {
		return raw, false
	}

	out := base + "?" + strings.Join(pairs, "&")
	if hasFragment {
		out += "#" + fragment
	}
	return out, true
}

// attr returns a with credentials masked. Groups are walked recursively,
// so a request body logged as a group is masked field by field.
func (r *redactor) attr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		members := v.Group()
		masked := make([]slog.Attr, len(members))
		for i, m := range members {
			masked[i] = r.attr(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	if r.sensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	if v.Kind() != slog.KindString {
		return slog.Attr{Key: a.Key, Value: v}
	}

	s := v.String()
	if r.sensitiveValue(s) {
		return slog.String(a.Key, MaskValue)
	}
	if redacted, ok := r.redactQuery(s); ok {
		return slog.String(a.Key, redacted)
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// containsSensitiveKeyword reports whether the lowercased key contains one
// of the sensitive keywords.
func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// isSensitiveValue reports whether value matches a secret pattern.
func isSensitiveValue(value string) bool {
	return defaultRedactor.sensitiveValue(value)
}

// SecureHandler is an slog.Handler that masks credentials before records
// reach the wrapped handler.
//
// Share requests carry session tokens and CSRF fields next to the shared
// URL, and share dialog URLs may carry access tokens in their query, so
// request dumps and event URLs must pass through this handler.
type SecureHandler struct {
	handler  slog.Handler
	redactor *redactor
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default's.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler, redactor: defaultRedactor}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.redactor.attr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs masks attrs before attaching them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.redactor.attr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(masked), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), redactor: h.redactor}
}

// NewLogger returns a logger writing to w through a SecureHandler.
// format selects FormatJSON output; anything else is text. Verbose mode
// logs at Debug level, otherwise at Info so recorded shares are visible
// while a watch is running.
func NewLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}

	var inner slog.Handler
	if format == FormatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewSecureHandler(inner))
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
