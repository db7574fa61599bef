package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/harlowglass/stockroom/internal/service"
	"github.com/harlowglass/stockroom/pkg/httpx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

type recoveryView struct {
	Email    string
	Question string
}

func (rt *Router) handleForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	rt.renderRecovery(w, r, http.StatusOK, "forgot_password", "Forgot password", "", recoveryView{})
}

func (rt *Router) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	email := r.PostFormValue("email")

	_, _, err := rt.Recovery.Begin(r.Context(), email)
	if err != nil {
		rt.recoveryFailure(w, r, "forgot_password", "Forgot password", err, recoveryView{Email: email})
		return
	}

	http.Redirect(w, r, "/security-question?email="+url.QueryEscape(email), http.StatusSeeOther)
}

func (rt *Router) handleSecurityQuestionForm(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	_, question, err := rt.Recovery.Begin(r.Context(), email)
	if err != nil {
		rt.recoveryFailure(w, r, "forgot_password", "Forgot password", err, recoveryView{Email: email})
		return
	}

	rt.renderRecovery(w, r, http.StatusOK, "security_question", "Security question", "",
		recoveryView{Email: email, Question: question})
}

func (rt *Router) handleSecurityQuestion(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	email := r.PostFormValue("email")
	answer := r.PostFormValue("answer")

	userID, question, err := rt.Recovery.Begin(r.Context(), email)
	if err != nil {
		rt.recoveryFailure(w, r, "forgot_password", "Forgot password", err, recoveryView{Email: email})
		return
	}

	if err := rt.Recovery.VerifyAnswer(r.Context(), userID, answer); err != nil {
		rt.recoveryFailure(w, r, "security_question", "Security question", err,
			recoveryView{Email: email, Question: question})
		return
	}

	http.Redirect(w, r, "/reset-password?email="+url.QueryEscape(email), http.StatusSeeOther)
}

func (rt *Router) handleResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	if _, _, err := rt.Recovery.Begin(r.Context(), email); err != nil {
		rt.recoveryFailure(w, r, "forgot_password", "Forgot password", err, recoveryView{Email: email})
		return
	}

	rt.renderRecovery(w, r, http.StatusOK, "reset_password", "Reset password", "",
		recoveryView{Email: email})
}

func (rt *Router) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	email := r.PostFormValue("email")
	answer := r.PostFormValue("answer")
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirmPassword")

	view := recoveryView{Email: email}

	if password == "" || password != confirm {
		rt.renderRecovery(w, r, http.StatusOK, "reset_password", "Reset password",
			"The passwords do not match.", view)
		return
	}

	userID, _, err := rt.Recovery.Begin(r.Context(), email)
	if err != nil {
		rt.recoveryFailure(w, r, "forgot_password", "Forgot password", err, view)
		return
	}

	if err := rt.Recovery.ResetPassword(r.Context(), userID, answer, password); err != nil {
		rt.recoveryFailure(w, r, "reset_password", "Reset password", err, view)
		return
	}

	http.Redirect(w, r, "/reset-password/confirmation", http.StatusSeeOther)
}

func (rt *Router) handleResetConfirmation(w http.ResponseWriter, r *http.Request) {
	rt.render(w, r, http.StatusOK, "reset_confirmation", viewData{
		Title: "Password reset",
	})
}

// recoveryFailure re-renders the given recovery page with the failure
// message, or a generic 500 for unexpected errors.
func (rt *Router) recoveryFailure(w http.ResponseWriter, r *http.Request, page, title string, err error, view recoveryView) {
	switch {
	case errors.Is(err, service.ErrNoActiveUserForEmail),
		errors.Is(err, service.ErrSecurityQuestionUnset),
		errors.Is(err, service.ErrIncorrectAnswer):
		rt.renderRecovery(w, r, http.StatusOK, page, title, err.Error(), view)
	default:
		slogx.FromContext(r.Context()).Error("password recovery failed", "error", err)
		rt.renderError(w, r, http.StatusInternalServerError,
			"Something went wrong. Please try again.")
	}
}

func (rt *Router) renderRecovery(w http.ResponseWriter, r *http.Request, status int, page, title, errMsg string, view recoveryView) {
	httpx.NoCache(w)
	rt.render(w, r, status, page, viewData{
		Title: title,
		Error: errMsg,
		Data:  view,
	})
}
