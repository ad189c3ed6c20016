package handlers

import (
	"encoding/json"
	"net/http"

	"tradepost/pkg/auth"
	"tradepost/pkg/logger"
	"tradepost/pkg/models"
	"tradepost/pkg/store"
	"tradepost/pkg/utils"
	"tradepost/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterItems registers catalog item routes onto the router.
func RegisterItems(r *mux.Router) {
	r.HandleFunc("/items", listItems).Methods(http.MethodGet)
	r.HandleFunc("/items", createItem).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}", getItem).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", updateItem).Methods(http.MethodPut)
}

// listItems handles GET /items. Non-admin callers see active listings
// only; admin and backend callers may filter by any status.
func listItems(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if !isAdmin(r) {
		status = models.ItemActive
	} else if status == "" {
		status = models.ItemActive
	}
	items, err := store.ListItems(status)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONList(w, http.StatusOK, items, len(items))
}

// createItem handles POST /items. New listings start pending and only
// appear in the public catalog once approved.
func createItem(w http.ResponseWriter, r *http.Request) {
	var it models.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	seller, status, msg := auth.ResolveUserFromRequest(r, it.Seller)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	it.Seller = seller
	if err := validation.ValidateName(it.Title); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if it.PriceCents < 0 {
		utils.JSONError(w, http.StatusBadRequest, "price must be non-negative")
		return
	}
	it.ID = utils.GenItemID()
	it.Status = models.ItemPending
	it.CreatedTS = utils.NowTS()
	it.UpdatedTS = it.CreatedTS
	it.RejectedTS = 0
	if err := store.SaveItem(it); err != nil {
		writeStoreErr(w, r, err)
		return
	}
	logger.Info("item_created", "item", it.ID, "seller", seller)
	utils.JSONData(w, http.StatusCreated, it)
}

func getItem(w http.ResponseWriter, r *http.Request) {
	it, err := store.GetItem(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	if it.Status != models.ItemActive && !isAdmin(r) {
		// unapproved listings are visible to their seller only; everyone
		// else sees a 404, not a 403, so existence isn't leaked
		if viewer := auth.UserIDFromContext(r.Context()); viewer == "" || it.Seller != viewer {
			utils.JSONError(w, http.StatusNotFound, "not found")
			return
		}
	}
	utils.JSONData(w, http.StatusOK, it)
}

// updateItem handles PUT /items/{id}. Only the seller may edit a listing;
// edits send the item back through moderation.
func updateItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Title      string `json:"title"`
		Photo      string `json:"photo"`
		Category   string `json:"category"`
		PriceCents int64  `json:"price_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	viewer, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	it, err := store.GetItem(id)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	if it.Seller != viewer && !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := validation.ValidateName(req.Title); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PriceCents < 0 {
		utils.JSONError(w, http.StatusBadRequest, "price must be non-negative")
		return
	}
	it.Title = req.Title
	it.Photo = req.Photo
	it.Category = req.Category
	it.PriceCents = req.PriceCents
	it.Status = models.ItemPending
	it.UpdatedTS = utils.NowTS()
	it.RejectedTS = 0
	if err := store.SaveItem(it); err != nil {
		writeStoreErr(w, r, err)
		return
	}
	logger.Info("item_updated", "item", it.ID)
	utils.JSONData(w, http.StatusOK, it)
}
