package httpx

import (
	"crypto/subtle"
	"net/http"

	"github.com/harlowglass/stockroom/pkg/cryptox"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

const (
	// CSRFCookieName holds the double-submit token on the client.
	CSRFCookieName = "stockroom_csrf"
	// CSRFFieldName is the hidden form field carrying the token back.
	CSRFFieldName = "csrf_token"
)

// CSRFToken returns the request's CSRF token, minting one and setting the
// cookie when the client doesn't have one yet. Call this when rendering a
// form so the template can embed the token.
func CSRFToken(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if c, err := r.Cookie(CSRFCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// CSRFProtect rejects unsafe-method requests whose form token doesn't match
// the cookie token (double-submit pattern).
func CSRFProtect() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(CSRFCookieName)
			if err != nil || cookie.Value == "" {
				rejectCSRF(w, r, "missing cookie")
				return
			}

			if err := r.ParseForm(); err != nil {
				rejectCSRF(w, r, "unparseable form")
				return
			}

			field := r.PostFormValue(CSRFFieldName)
			if field == "" || subtle.ConstantTimeCompare([]byte(field), []byte(cookie.Value)) != 1 {
				rejectCSRF(w, r, "token mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectCSRF(w http.ResponseWriter, r *http.Request, reason string) {
	slogx.FromContext(r.Context()).Warn("csrf rejected",
		"endpoint", r.URL.Path,
		"reason", reason,
	)
	http.Error(w, "Invalid or missing form token.", http.StatusForbidden)
}
