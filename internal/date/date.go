// Package date resolves config-provided durations and datetime patterns and
// turns relative entry URLs into absolute ones against a source page.
package date

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration so it can be decoded from either a bare
// integer (seconds) or a Go-style duration string such as "1h30m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for go-toml/v2, which
// calls this hook for every value decoded into a Duration and passes the
// value's raw text, so a bare TOML integer arrives here as its digits.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return fmt.Errorf("duration: empty value")
	}
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %q is neither an integer number of seconds nor a Go duration string: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalTOML sets d from an already-decoded TOML value: an int64 is taken
// as seconds and a string goes through UnmarshalText; any other type is an
// error. go-toml/v2 does not call this method (its decoder goes through
// UnmarshalText).
func (d *Duration) UnmarshalTOML(value any) error {
	switch v := value.(type) {
	case int64:
		*d = Duration(time.Duration(v) * time.Second)
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("duration: unsupported TOML value of type %T", value)
	}
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ParseFormat resolves a pub-date-format pattern into a time.Parse-compatible
// reference layout. An empty pattern means RFC 3339, the documented default.
func ParseFormat(pattern string) string {
	if pattern == "" {
		return time.RFC3339
	}
	return pattern
}

// ParsePublished parses s against layout and requires the layout to carry a
// timezone verb, per the extraction contract: a publication date without an
// offset is not a usable instant. time.Parse silently defaults a
// zone-less layout to UTC, so the check has to happen on the layout itself.
func ParsePublished(s, layout string) (time.Time, error) {
	if !layoutHasZone(layout) {
		return time.Time{}, fmt.Errorf("pub-date-format %q carries no timezone information", layout)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse %q as a date using layout %q: %w", s, layout, err)
	}
	return t, nil
}

func layoutHasZone(layout string) bool {
	for _, verb := range []string{"Z07:00", "Z0700", "-07:00", "-0700", "-07", "MST"} {
		if strings.Contains(layout, verb) {
			return true
		}
	}
	return false
}

// ResolveURL resolves candidate against base when candidate is relative. An
// already-absolute candidate is returned unchanged (but re-parsed, so
// malformed URLs are rejected uniformly).
func ResolveURL(base *url.URL, candidate string) (*url.URL, error) {
	ref, err := url.Parse(candidate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", candidate, err)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	if base == nil {
		return nil, fmt.Errorf("relative URL %q with no base URL to resolve against", candidate)
	}
	return base.ResolveReference(ref), nil
}
