// Package geotime validates and canonicalizes IANA timezone names.
package geotime

import (
	"strings"
	"time"

	"github.com/volk7/alerting/errors"
)

// NormalizeTimezone resolves user input into a canonical IANA timezone name.
// Returns InvalidZone-flavored error (via errors.Newf) for anything that
// cannot be resolved to a loadable *time.Location.
func NormalizeTimezone(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("timezone cannot be empty")
	}

	if IsValidTimezone(trimmed) {
		if canonical := CanonicalizeTimezone(trimmed); canonical != "" {
			return canonical, nil
		}
		return trimmed, nil
	}

	candidate := sanitizeTimezone(trimmed)
	if IsValidTimezone(candidate) {
		return candidate, nil
	}

	return "", errors.Newf("unknown timezone: %s", input)
}

// IsValidTimezone reports whether tz loads as a valid IANA location.
func IsValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// CanonicalizeTimezone returns the canonical IANA spelling for a valid but
// possibly mis-cased timezone (e.g. "america/new_york" -> "America/New_York").
// Returns "" when tz is already canonical or cannot be canonicalized.
func CanonicalizeTimezone(tz string) string {
	if strings.ToLower(tz) == tz || hasIncorrectCapitalization(tz) {
		candidate := sanitizeTimezone(tz)
		if IsValidTimezone(candidate) && candidate != tz {
			return candidate
		}
	}
	return ""
}

// ValidateTimezone ensures the timezone string maps to a valid IANA entry.
func ValidateTimezone(tz string) error {
	if !IsValidTimezone(tz) {
		return errors.Newf("invalid timezone: %s", tz)
	}
	return nil
}

func sanitizeTimezone(tz string) string {
	trimmed := strings.TrimSpace(tz)
	trimmed = strings.Trim(trimmed, "\"'")
	trimmed = strings.ReplaceAll(trimmed, " ", "_")
	if strings.Contains(trimmed, "/") {
		parts := strings.Split(trimmed, "/")
		for i, part := range parts {
			parts[i] = title(part)
		}
		return strings.Join(parts, "/")
	}
	return title(trimmed)
}

func title(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, "_")
}

func hasIncorrectCapitalization(tz string) bool {
	if strings.ToLower(tz) == tz {
		return true
	}
	if strings.Contains(tz, "/") {
		parts := strings.Split(tz, "/")
		for _, part := range parts {
			if len(part) > 0 && part[0] >= 'a' && part[0] <= 'z' {
				return true
			}
		}
	}
	return false
}
