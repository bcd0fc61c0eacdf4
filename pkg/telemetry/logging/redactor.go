package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor removes credentials from log attributes. Values are redacted when
// their key looks sensitive or when the value itself looks like a secret.
type Redactor struct {
	patterns []redactPattern
	keys     []string
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternQueryKey    = "query_key"
)

// Redacted replaces values under sensitive keys.
const Redacted = "***"

// defaultSensitiveKeys are matched as substrings of lowercased attribute keys.
// Plain "token" is not among them so that token counts stay visible.
var defaultSensitiveKeys = []string{
	"api_key", "apikey", "api-key", "x-api-key",
	"authorization",
	"access_token", "refresh_token", "auth_token", "session_token",
	"secret", "password", "private_key",
}

// exactSensitiveKeys are matched against the whole lowercased key.
var exactSensitiveKeys = map[string]bool{
	"token": true,
	"key":   true,
	"auth":  true,
}

// NewRedactor creates a Redactor with the built-in patterns. extraKeys adds
// attribute keys whose values are always redacted.
func NewRedactor(extraKeys []string) *Redactor {
	r := &Redactor{
		patterns: []redactPattern{
			// OpenAI (sk-..., sk-proj-...) and Anthropic (sk-ant-...) keys
			{PatternAPIKey, regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`), "sk-" + Redacted},
			{PatternBearerToken, regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer " + Redacted},
			{PatternQueryKey, regexp.MustCompile(`([?&](?:api_key|key|token)=)[^&\s]+`), "${1}" + Redacted},
		},
		keys: append([]string(nil), defaultSensitiveKeys...),
	}

	for _, k := range extraKeys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			r.keys = append(r.keys, k)
		}
	}

	return r
}

// RedactString replaces every secret-looking substring of value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr returns a with sensitive values replaced. Groups are redacted
// recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		attrs := v.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if r.isSensitiveKey(a.Key) {
		if v.Kind() == slog.KindString && v.String() == "" {
			return slog.String(a.Key, "")
		}
		return slog.String(a.Key, Redacted)
	}

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindAny:
		// Errors routinely carry vendor response bodies.
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// isSensitiveKey checks if a key name indicates sensitive data.
func (r *Redactor) isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	if exactSensitiveKeys[lowerKey] {
		return true
	}
	for _, sensitive := range r.keys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return Redacted
	}
	return apiKey[:4] + Redacted
}
