package web

import (
	"context"
	"net/http"
	"net/url"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/pkg/httpx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

type sessionCtxKey struct{}

func WithSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// SessionFrom returns the request's session, if the session middleware
// established one.
func SessionFrom(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(domain.Session)
	return sess, ok
}

// withSession resolves the session cookie and attaches the session to the
// request context. When the session cookie is missing or dead, a valid
// remember-me token re-establishes a fresh server session (never for
// inactive users; the sessions service refuses those).
func (rt *Router) withSession() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token := cookieValue(r, sessionCookie); token != "" {
				if sess, err := rt.Sessions.Resolve(ctx, token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
					return
				}
			}

			if remember := cookieValue(r, rememberCookie); remember != "" {
				token, sess, err := rt.Sessions.RedeemRemember(ctx, remember)
				if err == nil {
					rt.setCookie(w, sessionCookie, token, rt.SessionTTL)
					slogx.FromContext(ctx).Info("session restored from remember-me",
						"username", sess.Attrs.Username)
					next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
					return
				}
				// Dead remember token: drop it so we stop retrying.
				rt.clearCookie(w, rememberCookie)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth redirects signed-out requests to the login form, preserving
// the original URL as returnUrl.
func (rt *Router) requireAuth() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFrom(r.Context()); !ok {
				http.Redirect(w, r, "/login?returnUrl="+url.QueryEscape(r.URL.RequestURI()),
					http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAdmin gates the admin-only subtree.
func (rt *Router) requireAdmin() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFrom(r.Context())
			if !ok || domain.KindOf(sess.Attrs.Role) != domain.RoleAdmin {
				slogx.FromContext(r.Context()).Warn("admin access denied",
					"path", r.URL.Path,
					"role", sess.Attrs.Role,
				)
				rt.renderError(w, r, http.StatusForbidden,
					"You do not have permission to view this page.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
