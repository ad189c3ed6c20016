package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tradepost/pkg/auth"
	"tradepost/pkg/logger"
	"tradepost/pkg/store"
	"tradepost/pkg/utils"
	"tradepost/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterConversations registers conversation routes onto the router.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/read", markConversationRead).Methods(http.MethodPost)
}

// listConversations handles GET /conversations. Returns the caller's
// conversations enriched with participants, item, last message and unread
// count, newest activity first.
func listConversations(w http.ResponseWriter, r *http.Request) {
	viewer, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	views, err := store.ListConversationViews(viewer)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONList(w, http.StatusOK, views, len(views))
}

// createConversation handles POST /conversations. Finds or creates the
// conversation for the {caller, receiver} pair and optional item, then
// appends the initial message. Retrying with the same pair and item hits
// the same conversation; the response is 201 with the populated view and
// the created message either way.
func createConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Receiver string `json:"receiver_id"`
		Item     string `json:"item_id"`
		Content  string `json:"initial_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	requester, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	if req.Receiver == "" {
		utils.JSONError(w, http.StatusBadRequest, "receiver_id required")
		return
	}
	if req.Receiver == requester {
		utils.JSONError(w, http.StatusBadRequest, "cannot start a conversation with yourself")
		return
	}
	if err := validation.ValidateContent(req.Content); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := store.GetUser(req.Receiver); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "receiver not found")
			return
		}
		writeStoreErr(w, r, err)
		return
	}
	if req.Item != "" {
		if _, err := store.GetItem(req.Item); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.JSONError(w, http.StatusNotFound, "item not found")
				return
			}
			writeStoreErr(w, r, err)
			return
		}
	}

	c, m, created, err := store.CreateConversation(requester, req.Receiver, req.Item, req.Content)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	v, err := store.BuildConversationView(c, requester)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	logger.Info("conversation_create_handled", "conversation", c.ID, "created", created)
	utils.JSONData(w, http.StatusCreated, map[string]interface{}{"conversation": v, "message": m})
}

// getConversation handles GET /conversations/{id}. 404 when the
// conversation does not exist, 403 when the caller is not a participant.
func getConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	c, err := store.GetConversation(id, viewer)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	v, err := store.BuildConversationView(c, viewer)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONData(w, http.StatusOK, v)
}

// markConversationRead handles POST /conversations/{id}/read. Adds the
// caller to the read set of every message authored by someone else and
// reports how many messages changed.
func markConversationRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	n, err := store.MarkRead(id, viewer)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONData(w, http.StatusOK, map[string]int{"modified_count": n})
}
