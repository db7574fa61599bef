package web

import (
	"net/http"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/pkg/httpx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

// handleHome dispatches the signed-in user to their role's landing page.
func (rt *Router) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	http.Redirect(w, r, domain.KindOf(sess.Attrs.Role).LandingPath(), http.StatusSeeOther)
}

type dashboardView struct {
	Summary   domain.DashboardSummary
	Locations []domain.Location
}

func (rt *Router) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	summary, err := rt.Inventory.Dashboard(r.Context(), sess.Attrs)
	if err != nil {
		slogx.FromContext(r.Context()).Error("admin dashboard failed", "error", err)
		rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	locations, err := rt.Inventory.Locations(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("admin dashboard failed", "error", err)
		rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	httpx.NoCache(w)
	rt.render(w, r, http.StatusOK, "admin", viewData{
		Title: "Admin dashboard",
		Data:  dashboardView{Summary: summary, Locations: locations},
	})
}

func (rt *Router) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	summary, err := rt.Inventory.Dashboard(r.Context(), sess.Attrs)
	if err != nil {
		slogx.FromContext(r.Context()).Error("dashboard failed", "error", err)
		rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	httpx.NoCache(w)
	rt.render(w, r, http.StatusOK, "dashboard", viewData{
		Title: "Dashboard",
		Data:  dashboardView{Summary: summary},
	})
}

type inventoryView struct {
	Lines []domain.StockLine
}

func (rt *Router) handleInventory(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	lines, err := rt.Inventory.Stock(r.Context(), sess.Attrs)
	if err != nil {
		slogx.FromContext(r.Context()).Error("inventory listing failed", "error", err)
		rt.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	httpx.NoCache(w)
	rt.render(w, r, http.StatusOK, "inventory", viewData{
		Title: "Inventory",
		Data:  inventoryView{Lines: lines},
	})
}
