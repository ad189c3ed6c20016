package handlers

import (
	"net/http"

	"tradepost/pkg/logger"
	"tradepost/pkg/models"
	"tradepost/pkg/store"
	"tradepost/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterAdmin registers admin-only routes onto the admin subrouter. The
// gateway already rejects non-admin callers for everything under /admin;
// the isAdmin check here is a second fence for direct wiring mistakes.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/health", adminHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", adminStats).Methods(http.MethodGet)
	r.HandleFunc("/items", adminListItems).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}/approve", adminApproveItem).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}/reject", adminRejectItem).Methods(http.MethodPost)
	logger.Info("admin_routes_registered")
}

func adminHealth(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	utils.JSONData(w, http.StatusOK, map[string]string{"status": "ok", "service": "tradepost"})
}

// adminStats handles GET /admin/stats: document counts across the store
// plus the moderation queue depth.
func adminStats(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	stats, err := store.CollectStats()
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONData(w, http.StatusOK, stats)
}

// adminListItems handles GET /admin/items?status=<s>, defaulting to the
// pending moderation queue.
func adminListItems(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.ItemPending
	}
	items, err := store.ListItems(status)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONList(w, http.StatusOK, items, len(items))
}

func adminApproveItem(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	it, err := transitionItem(mux.Vars(r)["id"], models.ItemActive)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	logger.Info("item_approved", "item", it.ID)
	utils.JSONData(w, http.StatusOK, it)
}

func adminRejectItem(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	it, err := transitionItem(mux.Vars(r)["id"], models.ItemRejected)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	logger.Info("item_rejected", "item", it.ID)
	utils.JSONData(w, http.StatusOK, it)
}

func transitionItem(id, status string) (models.Item, error) {
	it, err := store.GetItem(id)
	if err != nil {
		return it, err
	}
	it.Status = status
	it.UpdatedTS = utils.NowTS()
	if status == models.ItemRejected {
		it.RejectedTS = it.UpdatedTS
	} else {
		it.RejectedTS = 0
	}
	return it, store.SaveItem(it)
}
