package catalog

import (
	"net/http"

	"github.com/kirana-labs/backend-pos/internal/common"
)

// Handler wires the catalog service to HTTP. Both the full POS screen and the
// quick-sale screen consume these endpoints.
type Handler struct {
	Svc *Service
}

// Products handles product search. The quick-sale screen calls this on every
// debounced keystroke; results come from the cached snapshot.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	products, err := h.Svc.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "unable to load catalog", nil)
		return
	}
	common.JSONData(w, http.StatusOK, products)
}

// Tiers lists the selectable (active) pricing tiers.
func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	snap, err := h.Svc.Snapshot(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "unable to load catalog", nil)
		return
	}
	out := make([]map[string]any, 0, len(snap.Tiers))
	for _, t := range snap.Tiers {
		out = append(out, map[string]any{
			"id":                 t.ID,
			"name":               t.Name,
			"default_percentage": t.DefaultPercentage,
		})
	}
	common.JSONData(w, http.StatusOK, out)
}
