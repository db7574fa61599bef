package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/harlowglass/stockroom/internal/service"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/httpx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger        *slog.Logger
	renderer      *Renderer
	secureCookies bool

	SessionTTL  time.Duration
	RememberTTL time.Duration
	TrustedTTL  time.Duration

	Store     store.Store
	Auth      *service.AuthService
	Sessions  *service.SessionsService
	Recovery  *service.RecoveryService
	Roles     *service.RolesService
	Users     *service.UsersService
	Inventory *service.InventoryService
}

func NewRouter(logger *slog.Logger, secureCookies bool) (*Router, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	r := &Router{
		Mux:           http.NewServeMux(),
		logger:        logger,
		renderer:      renderer,
		secureCookies: secureCookies,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.withSession(),
	}

	return r, nil
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(rt.Mux, rt.middlewares...).ServeHTTP(w, req)
}

func (rt *Router) ApplyRoutes() {
	rt.registerHealth()
	rt.registerAuth()
	rt.registerRecovery()
	rt.registerDashboards()
	rt.registerRoles()
}

func (rt *Router) registerHealth() {
	rt.Mux.Handle("GET /livez", http.HandlerFunc(rt.handleLivez))
	rt.Mux.Handle("GET /readyz", http.HandlerFunc(rt.handleReadyz))
}

func (rt *Router) registerAuth() {
	rt.Mux.Handle("GET /login", http.HandlerFunc(rt.handleLoginForm))
	rt.Mux.Handle("POST /login",
		httpx.Chain(http.HandlerFunc(rt.handleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
			httpx.CSRFProtect(),
		))

	rt.Mux.Handle("GET /login/2fa", http.HandlerFunc(rt.handleTwoFactorForm))
	rt.Mux.Handle("POST /login/2fa",
		httpx.Chain(http.HandlerFunc(rt.handleTwoFactor),
			httpx.RateLimitByIP(httpx.StrictLimit),
			httpx.CSRFProtect(),
		))

	rt.Mux.Handle("POST /logout",
		httpx.Chain(http.HandlerFunc(rt.handleLogout),
			httpx.CSRFProtect(),
		))

	rt.Mux.Handle("GET /register", http.HandlerFunc(rt.handleRegisterForm))
	rt.Mux.Handle("POST /register",
		httpx.Chain(http.HandlerFunc(rt.handleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
			httpx.CSRFProtect(),
		))
}

func (rt *Router) registerRecovery() {
	strict := httpx.RateLimitByIP(httpx.StrictLimit)

	rt.Mux.Handle("GET /forgot-password", http.HandlerFunc(rt.handleForgotPasswordForm))
	rt.Mux.Handle("POST /forgot-password",
		httpx.Chain(http.HandlerFunc(rt.handleForgotPassword), strict, httpx.CSRFProtect()))

	rt.Mux.Handle("GET /security-question", http.HandlerFunc(rt.handleSecurityQuestionForm))
	rt.Mux.Handle("POST /security-question",
		httpx.Chain(http.HandlerFunc(rt.handleSecurityQuestion), strict, httpx.CSRFProtect()))

	rt.Mux.Handle("GET /reset-password", http.HandlerFunc(rt.handleResetPasswordForm))
	rt.Mux.Handle("POST /reset-password",
		httpx.Chain(http.HandlerFunc(rt.handleResetPassword), strict, httpx.CSRFProtect()))

	rt.Mux.Handle("GET /reset-password/confirmation", http.HandlerFunc(rt.handleResetConfirmation))
}

func (rt *Router) registerDashboards() {
	auth := rt.requireAuth()
	lenient := httpx.RateLimitByIP(httpx.LenientLimit)

	rt.Mux.Handle("GET /{$}",
		httpx.Chain(http.HandlerFunc(rt.handleHome), auth, lenient))
	rt.Mux.Handle("GET /admin",
		httpx.Chain(http.HandlerFunc(rt.handleAdminDashboard), auth, rt.requireAdmin(), lenient))
	rt.Mux.Handle("GET /dashboard",
		httpx.Chain(http.HandlerFunc(rt.handleDashboard), auth, lenient))
	rt.Mux.Handle("GET /inventory",
		httpx.Chain(http.HandlerFunc(rt.handleInventory), auth, lenient))
}

func (rt *Router) registerRoles() {
	guard := []httpx.Middleware{
		rt.requireAuth(),
		rt.requireAdmin(),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	}
	post := append(append([]httpx.Middleware{}, guard...), httpx.CSRFProtect())

	rt.Mux.Handle("GET /roles",
		httpx.Chain(http.HandlerFunc(rt.handleRolesList), guard...))

	rt.Mux.Handle("GET /roles/create",
		httpx.Chain(http.HandlerFunc(rt.handleRoleCreateForm), guard...))
	rt.Mux.Handle("POST /roles/create",
		httpx.Chain(http.HandlerFunc(rt.handleRoleCreate), post...))

	rt.Mux.Handle("GET /roles/{id}/edit",
		httpx.Chain(http.HandlerFunc(rt.handleRoleEditForm), guard...))
	rt.Mux.Handle("POST /roles/{id}/edit",
		httpx.Chain(http.HandlerFunc(rt.handleRoleEdit), post...))

	rt.Mux.Handle("GET /roles/{id}/delete",
		httpx.Chain(http.HandlerFunc(rt.handleRoleDeleteForm), guard...))
	rt.Mux.Handle("POST /roles/{id}/delete",
		httpx.Chain(http.HandlerFunc(rt.handleRoleDelete), post...))
}
