package domain

import (
	"encoding/json"
	"errors"
)

var (
	ErrInvalidCookies = errors.New("cookies must be a JSON array")
	ErrInvalidSpeed   = errors.New("speed must be between 1 and 200")
	ErrJobNotFound    = errors.New("job not found")

	// ErrSessionInvalid marks an authentication failure after cookie
	// injection. Fatal to the owning job; fresh cookies are required.
	ErrSessionInvalid = errors.New("session invalid")
)

// Cookie is one exported browser cookie record.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
}

// ParseCookies decodes an exported-cookie payload. The payload must be a
// JSON array of cookie records; anything else yields ErrInvalidCookies.
// Safe to call repeatedly on the same payload (submission and engine start
// both validate).
func ParseCookies(raw string) ([]Cookie, error) {
	var cookies []Cookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		return nil, ErrInvalidCookies
	}
	if cookies == nil {
		return nil, ErrInvalidCookies
	}
	return cookies, nil
}
