// Package web serves the HTML surface: login and recovery flows, role
// administration and the dashboards.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/pkg/httpx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages are parsed each against the shared layout.
var pageNames = []string{
	"login", "twofactor", "register",
	"forgot_password", "security_question", "reset_password", "reset_confirmation",
	"dashboard", "admin", "inventory",
	"roles_list", "role_form", "role_delete",
	"error",
}

type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// viewData is the envelope every page receives.
type viewData struct {
	Title     string
	Attrs     *domain.SessionAttrs // nil when signed out
	CSRFToken string
	Error     string
	Data      any
}

func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, page string, data viewData) {
	tmpl, ok := r.templates[page]
	if !ok {
		slogx.FromContext(req.Context()).Error("unknown template", "page", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slogx.FromContext(req.Context()).Error("render failed", "page", page, "error", err)
	}
}

// render fills the common envelope fields before executing the template:
// the session attrs for the nav bar and a CSRF token for any form on the
// page (the layout's logout form included).
func (rt *Router) render(w http.ResponseWriter, r *http.Request, status int, page string, data viewData) {
	if data.Attrs == nil {
		data.Attrs = attrsPtr(r)
	}
	if data.CSRFToken == "" {
		token, err := httpx.CSRFToken(w, r, rt.secureCookies)
		if err != nil {
			slogx.FromContext(r.Context()).Error("csrf token mint failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		data.CSRFToken = token
	}
	rt.renderer.Render(w, r, status, page, data)
}

func (rt *Router) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	rt.render(w, r, status, "error", viewData{
		Title: http.StatusText(status),
		Error: message,
	})
}

func attrsPtr(req *http.Request) *domain.SessionAttrs {
	if sess, ok := SessionFrom(req.Context()); ok {
		attrs := sess.Attrs
		return &attrs
	}
	return nil
}
