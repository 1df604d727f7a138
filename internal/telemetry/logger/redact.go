package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// tokenPrefix marks the text form of a registry token. Such a value is a
// capability wherever it appears, so it is masked under any key.
const tokenPrefix = "srtk_"

const redactedValue = "***REDACTED***"

var sensitiveKeyWords = []string{"password", "secret", "token", "key", "credential"}

// Keys ending like this name where a secret lives, not the secret.
var locatorSuffixes = []string{"_file", "_path", "_dir", "_id"}

// redactSensitive is the handlers' ReplaceAttr hook. slog calls it for the
// members of a group, never for the group itself.
func redactSensitive(_ []string, a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.HasPrefix(s, tokenPrefix) {
			return slog.String(a.Key, maskToken(s))
		}
		if s != "" && isSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindAny:
		// Secrets and signatures travel as raw bytes.
		if b, ok := v.Any().([]byte); ok && isSensitiveKey(a.Key) {
			return slog.String(a.Key, fmt.Sprintf("[%d bytes]", len(b)))
		}
	}
	return a
}

// maskToken keeps the prefix and the first and last 3 characters of the
// body, enough to correlate log lines.
func maskToken(s string) string {
	body := s[len(tokenPrefix):]
	if len(body) <= 6 {
		return tokenPrefix + "***"
	}
	return tokenPrefix + body[:3] + "..." + body[len(body)-3:]
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, suffix := range locatorSuffixes {
		if strings.HasSuffix(k, suffix) {
			return false
		}
	}
	for _, w := range sensitiveKeyWords {
		if strings.Contains(k, w) {
			return true
		}
	}
	return false
}
