package phone

import "strings"

const (
	DefaultCountryCode = "57"
	DefaultSuffix      = "@c.us"
)

// Normalizer canonicalizes raw phone strings into channel-routable
// addresses. The zero value is unusable; use New.
type Normalizer struct {
	countryCode string
	suffix      string
}

func New(countryCode, suffix string) Normalizer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return Normalizer{countryCode: countryCode, suffix: suffix}
}

// Normalize strips every non-digit, prepends the country code to bare
// 10-digit numbers, and appends the channel suffix. Returns "" for inputs
// with no digits; callers treat that as a per-row input error.
func (n Normalizer) Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}
	if len(cleaned) == 10 && !strings.HasPrefix(cleaned, n.countryCode) {
		cleaned = n.countryCode + cleaned
	}
	if strings.HasSuffix(cleaned, n.suffix) {
		return cleaned
	}
	return cleaned + n.suffix
}
