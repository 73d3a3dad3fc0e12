package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// redactionAllowlist covers protocol identity and request-routing metadata
// that is safe to emit in cleartext. Deliberately absent: "code" (a one-time
// action code is bearer-equivalent to the wallet signature that produced it,
// §4) and "signature" - those always pass through MaskField unredacted-key
// logic and come out masked.
var redactionAllowlist = map[string]struct{}{
	"protocol":  {},
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"chain":     {},
	"route":     {},
	"method":    {},
	"status":    {},
	"requestid": {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the log keys that are allowed to be emitted
// without redaction. Tests use this to ensure sensitive keys remain masked.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the canonical redacted placeholder for non-empty values. Empty values
// are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskCode redacts an action code unconditionally, bypassing the allowlist
// entirely. A code is a bearer credential for the remainder of its window
// (§4, §7); unlike most fields there is no key name under which it would
// ever be acceptable to log one in cleartext.
func MaskCode(code string) string {
	return MaskValue(code)
}
