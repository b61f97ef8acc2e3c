package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"tapcanvas/threadgate/pkg/config"
)

// Redactor masks secrets in log attributes.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternOpenAIKey   = "openai_key"
	PatternGoogleKey   = "google_key"
	PatternBearerToken = "bearer_token"
	PatternKeyValue    = "key_value"
)

var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternOpenAIKey, `sk-[A-Za-z0-9_\-]{8,}`, "sk-***"},
	{PatternGoogleKey, `AIza[0-9A-Za-z_\-]{20,}`, "AIza***"},
	{PatternBearerToken, `(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternKeyValue, `(?i)((?:api[-_]?key|secret|password)\s*[:=]\s*)[^\s,;&]+`, "${1}***"},
}

// sensitiveKeys are attribute key fragments whose values are always masked.
var sensitiveKeys = []string{
	"api_key", "apikey", "secret", "password", "passwd",
	"token", "authorization", "cookie", "private_key",
}

// NewRedactor creates a Redactor with the built-in patterns plus any custom
// ones. Custom patterns that fail to compile are skipped; configuration
// validation reports them before this point.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       re,
			replacement: p.Replacement,
		})
	}
	return r
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether an attribute key names a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, MaskSecret(a.Value.String()))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); s != "" {
			if redacted := r.RedactString(s); redacted != s {
				return slog.String(a.Key, redacted)
			}
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			msg := err.Error()
			if redacted := r.RedactString(msg); redacted != msg {
				return slog.String(a.Key, redacted)
			}
		}
	}
	return a
}

// MaskSecret keeps a four character prefix of longer secrets.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***"
}
