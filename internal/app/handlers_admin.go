package app

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/newrey/llm-gateway/internal/configstore"
)

// handleAdminPage redirects to the configured admin page path, where the
// file server mounted in wireRoutes serves the static admin page.
func (a *Application) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, a.cfg.Routing.AdminPagePath+"/", http.StatusFound)
}

// handleAdminConfig serves GET /admin/config (one row per binding of the
// live routing document, with its limits, quota status and health; the
// providers' base_url and api_key are not included) and POST
// /admin/config (a full document replacement, validated then atomically
// swapped).
func (a *Application) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.admin.Bindings())
	case http.MethodPost:
		var next configstore.Document
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			http.Error(w, "invalid routing document: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := a.admin.ReplaceDocument(next); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAdminResetLimits serves POST /admin/limits/{provider}/reset,
// clearing one provider's rate-limiter buckets.
func (a *Application) handleAdminResetLimits(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	if provider == "" {
		http.Error(w, "missing provider path segment", http.StatusBadRequest)
		return
	}
	a.admin.ResetCounters(provider)
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminProbe serves POST /admin/health, optionally scoped to a
// single model+provider pair via query parameters; with neither
// supplied it probes every binding and returns the full health matrix.
func (a *Application) handleAdminProbe(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	provider := r.URL.Query().Get("provider")

	w.Header().Set("Content-Type", "application/json")

	if model != "" && provider != "" {
		result, err := a.admin.ProbeOne(r.Context(), model, provider)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(result)
		return
	}

	_ = json.NewEncoder(w).Encode(a.admin.ProbeAll(r.Context()))
}

// handleAPIUsage serves GET /api_usage: per-provider rolling totals, or
// the n most recent individual records when ?recent=n is supplied.
func (a *Application) handleAPIUsage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if raw := r.URL.Query().Get("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid recent parameter", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(a.admin.RecentUsage(n))
		return
	}

	_ = json.NewEncoder(w).Encode(a.admin.Usage())
}
