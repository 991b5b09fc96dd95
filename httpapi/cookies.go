package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CookieConfig controls the refresh cookie and the optional access cookie.
type CookieConfig struct {
	// Name of the refresh token cookie. Defaults to "refresh".
	Name string
	// AccessName, when set, also delivers the access token as a cookie.
	AccessName string
	Path       string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.Name == "" {
		c.Name = "refresh"
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// ParseSameSite accepts lax, strict, none or an empty string (lax).
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown same-site mode %q", s)
	}
}

func (c CookieConfig) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// expired is the removal form: empty value, Max-Age=0 and an epoch expiry.
func (c CookieConfig) expired(name string) *http.Cookie {
	ck := c.cookie(name, "", 0)
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	return ck
}
