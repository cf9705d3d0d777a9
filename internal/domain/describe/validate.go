package describe

import (
	"net/url"
	"strings"
)

// MaxURLLength 与浏览器常见上限一致
const MaxURLLength = 2083

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxURLLength {
		return nil, newError(KindValidation, DetailInvalidURL, nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newError(KindValidation, DetailInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, newError(KindValidation, DetailInvalidURL, nil)
	}
	if u.Hostname() == "" {
		return nil, newError(KindValidation, DetailInvalidURL, nil)
	}
	return u, nil
}
