package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/harlowglass/stockroom/internal/service"
	"github.com/harlowglass/stockroom/pkg/httpx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

type loginView struct {
	Username  string
	ReturnURL string
}

func (rt *Router) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := SessionFrom(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	rt.renderLogin(w, r, http.StatusOK, "", loginView{
		ReturnURL: safeReturnURL(r.URL.Query().Get("returnUrl")),
	})
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	rememberMe := r.PostFormValue("rememberMe") == "on" || r.PostFormValue("rememberMe") == "true"
	returnURL := safeReturnURL(r.PostFormValue("returnUrl"))

	res, err := rt.Auth.Login(r.Context(), username, password, rememberMe, returnURL,
		cookieValue(r, trustedCookie))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLoginOrInactive),
			errors.Is(err, service.ErrAccountLockedOut),
			errors.Is(err, service.ErrInvalidLogin),
			errors.Is(err, service.ErrTwoFactorSendFailed):
			rt.renderLogin(w, r, http.StatusOK, err.Error(), loginView{
				Username:  username,
				ReturnURL: returnURL,
			})
		default:
			slogx.FromContext(r.Context()).Error("login failed", "error", err)
			rt.renderError(w, r, http.StatusInternalServerError,
				"Something went wrong. Please try again.")
		}
		return
	}

	if res.ChallengeToken != "" {
		rt.setCookie(w, challengeCookie, res.ChallengeToken, rt.Auth.ChallengeTTL)
		http.Redirect(w, r, "/login/2fa", http.StatusSeeOther)
		return
	}

	rt.finishSignIn(w, r, res)
}

func (rt *Router) handleTwoFactorForm(w http.ResponseWriter, r *http.Request) {
	if cookieValue(r, challengeCookie) == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	rt.renderTwoFactor(w, r, http.StatusOK, "")
}

func (rt *Router) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	challenge := cookieValue(r, challengeCookie)
	if challenge == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	code := strings.TrimSpace(r.PostFormValue("code"))
	rememberMachine := r.PostFormValue("rememberMachine") == "on" || r.PostFormValue("rememberMachine") == "true"

	res, err := rt.Auth.VerifyTwoFactor(r.Context(), challenge, code, rememberMachine)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTwoFactorCode):
			rt.renderTwoFactor(w, r, http.StatusOK, err.Error())
		case errors.Is(err, service.ErrInvalidLoginOrInactive),
			errors.Is(err, service.ErrTwoFactorNotEnabled),
			errors.Is(err, service.ErrAccountLockedOut):
			rt.clearCookie(w, challengeCookie)
			rt.renderLogin(w, r, http.StatusOK, err.Error(), loginView{})
		default:
			slogx.FromContext(r.Context()).Error("2fa verification failed", "error", err)
			rt.renderError(w, r, http.StatusInternalServerError,
				"Something went wrong. Please try again.")
		}
		return
	}

	rt.clearCookie(w, challengeCookie)
	rt.finishSignIn(w, r, res)
}

func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := cookieValue(r, sessionCookie); token != "" {
		if err := rt.Sessions.Logout(r.Context(), token); err != nil {
			slogx.FromContext(r.Context()).Error("logout failed", "error", err)
		}
	}
	rt.clearCookie(w, sessionCookie)
	rt.clearCookie(w, rememberCookie)
	rt.clearCookie(w, challengeCookie)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type registerView struct {
	Username         string
	Email            string
	DisplayName      string
	PhoneNumber      string
	SecurityQuestion string
}

func (rt *Router) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := SessionFrom(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	rt.renderRegister(w, r, http.StatusOK, "", registerView{})
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}

	params := service.RegisterParams{
		Username:         r.PostFormValue("username"),
		Email:            r.PostFormValue("email"),
		DisplayName:      r.PostFormValue("displayName"),
		PhoneNumber:      r.PostFormValue("phoneNumber"),
		Password:         r.PostFormValue("password"),
		SecurityQuestion: r.PostFormValue("securityQuestion"),
		SecurityAnswer:   r.PostFormValue("securityAnswer"),
	}

	user, err := rt.Users.Register(r.Context(), params)
	if err != nil {
		view := registerView{
			Username:         params.Username,
			Email:            params.Email,
			DisplayName:      params.DisplayName,
			PhoneNumber:      params.PhoneNumber,
			SecurityQuestion: params.SecurityQuestion,
		}
		switch {
		case errors.Is(err, service.ErrRegistrationFields),
			errors.Is(err, service.ErrUsernameTaken),
			errors.Is(err, service.ErrEmailTaken):
			rt.renderRegister(w, r, http.StatusOK, err.Error(), view)
		default:
			slogx.FromContext(r.Context()).Error("registration failed", "error", err)
			rt.renderError(w, r, http.StatusInternalServerError,
				"Something went wrong. Please try again.")
		}
		return
	}

	// Registration signs the user straight in; no remember-me.
	token, _, err := rt.Sessions.Issue(r.Context(), user)
	if err != nil {
		slogx.FromContext(r.Context()).Error("post-register sign-in failed", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	rt.setCookie(w, sessionCookie, token, rt.SessionTTL)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// finishSignIn sets the auth cookies and issues the post-login redirect. The
// trusted-device cookie outlives the session so the browser stays trusted
// across logouts.
func (rt *Router) finishSignIn(w http.ResponseWriter, r *http.Request, res service.LoginResult) {
	rt.setCookie(w, sessionCookie, res.SessionToken, rt.SessionTTL)
	if res.RememberToken != "" {
		rt.setCookie(w, rememberCookie, res.RememberToken, rt.RememberTTL)
	}
	if res.TrustedToken != "" {
		rt.setCookie(w, trustedCookie, res.TrustedToken, rt.TrustedTTL)
	}
	http.Redirect(w, r, res.RedirectTo, http.StatusSeeOther)
}

func (rt *Router) renderLogin(w http.ResponseWriter, r *http.Request, status int, errMsg string, view loginView) {
	httpx.NoCache(w)
	rt.render(w, r, status, "login", viewData{
		Title: "Sign in",
		Error: errMsg,
		Data:  view,
	})
}

func (rt *Router) renderTwoFactor(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	httpx.NoCache(w)
	rt.render(w, r, status, "twofactor", viewData{
		Title: "Two-factor verification",
		Error: errMsg,
	})
}

func (rt *Router) renderRegister(w http.ResponseWriter, r *http.Request, status int, errMsg string, view registerView) {
	rt.render(w, r, status, "register", viewData{
		Title: "Register",
		Error: errMsg,
		Data:  view,
	})
}

// safeReturnURL keeps redirects on-site: only rooted local paths survive.
func safeReturnURL(s string) string {
	if s == "" || !strings.HasPrefix(s, "/") {
		return ""
	}
	if strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return ""
	}
	return s
}
