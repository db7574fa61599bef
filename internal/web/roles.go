package web

import (
	"errors"
	"net/http"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/service"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

type rolesListView struct {
	Roles []domain.Role
}

type roleFormView struct {
	Role   domain.Role
	IsEdit bool
}

func (rt *Router) handleRolesList(w http.ResponseWriter, r *http.Request) {
	roles, err := rt.Roles.ListAll(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("list roles failed", "error", err)
		rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	rt.render(w, r, http.StatusOK, "roles_list", viewData{
		Title: "Roles",
		Data:  rolesListView{Roles: roles},
	})
}

func (rt *Router) handleRoleCreateForm(w http.ResponseWriter, r *http.Request) {
	rt.renderRoleForm(w, r, http.StatusOK, "", roleFormView{})
}

func (rt *Router) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	name := r.PostFormValue("name")

	if _, err := rt.Roles.Create(r.Context(), name); err != nil {
		switch {
		case errors.Is(err, service.ErrRoleNameRequired), errors.Is(err, service.ErrRoleNameTaken):
			rt.renderRoleForm(w, r, http.StatusOK, err.Error(),
				roleFormView{Role: domain.Role{Name: name}})
		default:
			slogx.FromContext(r.Context()).Error("create role failed", "error", err)
			rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		}
		return
	}

	http.Redirect(w, r, "/roles", http.StatusSeeOther)
}

func (rt *Router) handleRoleEditForm(w http.ResponseWriter, r *http.Request) {
	role, ok := rt.loadRole(w, r)
	if !ok {
		return
	}
	rt.renderRoleForm(w, r, http.StatusOK, "", roleFormView{Role: role, IsEdit: true})
}

func (rt *Router) handleRoleEdit(w http.ResponseWriter, r *http.Request) {
	role, ok := rt.loadRole(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		rt.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	name := r.PostFormValue("name")

	if err := rt.Roles.Rename(r.Context(), role.ID, name); err != nil {
		switch {
		case errors.Is(err, service.ErrRoleNameRequired), errors.Is(err, service.ErrRoleNameTaken):
			role.Name = name
			rt.renderRoleForm(w, r, http.StatusOK, err.Error(), roleFormView{Role: role, IsEdit: true})
		case errors.Is(err, store.ErrNotFound):
			rt.renderError(w, r, http.StatusNotFound, "Role not found.")
		default:
			slogx.FromContext(r.Context()).Error("rename role failed", "error", err)
			rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		}
		return
	}

	http.Redirect(w, r, "/roles", http.StatusSeeOther)
}

func (rt *Router) handleRoleDeleteForm(w http.ResponseWriter, r *http.Request) {
	role, ok := rt.loadRole(w, r)
	if !ok {
		return
	}

	rt.render(w, r, http.StatusOK, "role_delete", viewData{
		Title: "Delete role",
		Data:  roleFormView{Role: role},
	})
}

func (rt *Router) handleRoleDelete(w http.ResponseWriter, r *http.Request) {
	role, ok := rt.loadRole(w, r)
	if !ok {
		return
	}

	if err := rt.Roles.Delete(r.Context(), role.ID); err != nil {
		switch {
		case errors.Is(err, service.ErrRoleInUse):
			rt.render(w, r, http.StatusOK, "role_delete", viewData{
				Title: "Delete role",
				Error: err.Error(),
				Data:  roleFormView{Role: role},
			})
		case errors.Is(err, store.ErrNotFound):
			rt.renderError(w, r, http.StatusNotFound, "Role not found.")
		default:
			slogx.FromContext(r.Context()).Error("delete role failed", "error", err)
			rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		}
		return
	}

	http.Redirect(w, r, "/roles", http.StatusSeeOther)
}

// loadRole resolves the {id} path value, writing a 404 when the role does
// not exist.
func (rt *Router) loadRole(w http.ResponseWriter, r *http.Request) (domain.Role, bool) {
	id := r.PathValue("id")

	role, err := rt.Roles.GetRoleByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rt.renderError(w, r, http.StatusNotFound, "Role not found.")
		} else {
			slogx.FromContext(r.Context()).Error("load role failed", "error", err)
			rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		}
		return domain.Role{}, false
	}
	return role, true
}

func (rt *Router) renderRoleForm(w http.ResponseWriter, r *http.Request, status int, errMsg string, view roleFormView) {
	rt.render(w, r, status, "role_form", viewData{
		Title: "Role",
		Error: errMsg,
		Data:  view,
	})
}
