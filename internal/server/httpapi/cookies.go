package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/config"
)

const (
	RefreshCookie = "x-token"
	AccessCookie  = "a-token"
)

type cookieJar struct {
	secure   bool
	domain   string
	sameSite http.SameSite
}

func newCookieJar(c config.CookieConfig) cookieJar {
	return cookieJar{
		secure:   c.Secure,
		domain:   c.Domain,
		sameSite: parseSameSite(c.SameSite),
	}
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (j cookieJar) set(w http.ResponseWriter, name, value string, exp time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.domain,
		Expires:  exp,
		HttpOnly: httpOnly,
		Secure:   j.secure,
		SameSite: j.sameSite,
	})
}

func (j cookieJar) setAccess(w http.ResponseWriter, token string, exp time.Time) {
	j.set(w, AccessCookie, token, exp, false)
}

func (j cookieJar) setRefresh(w http.ResponseWriter, token string, exp time.Time) {
	j.set(w, RefreshCookie, token, exp, true)
}

func (j cookieJar) clear(w http.ResponseWriter) {
	for _, c := range []struct {
		name     string
		httpOnly bool
	}{{RefreshCookie, true}, {AccessCookie, false}} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     "/",
			Domain:   j.domain,
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: c.httpOnly,
			Secure:   j.secure,
			SameSite: j.sameSite,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
