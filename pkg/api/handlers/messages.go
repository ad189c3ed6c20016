package handlers

import (
	"encoding/json"
	"net/http"

	"tradepost/pkg/auth"
	"tradepost/pkg/store"
	"tradepost/pkg/utils"
	"tradepost/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterMessages registers message routes onto the router.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/conversation/{conversationID}", listConversationMessages).Methods(http.MethodGet)
}

// sendMessage handles POST /messages. The caller must be a participant of
// the target conversation; the new message's read set starts with the
// sender.
func sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Conversation string `json:"conversation_id"`
		Content      string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sender, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	if req.Conversation == "" {
		utils.JSONError(w, http.StatusBadRequest, "conversation_id required")
		return
	}
	if err := validation.ValidateContent(req.Content); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := store.SendMessage(req.Conversation, sender, req.Content)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONData(w, http.StatusCreated, m)
}

// listConversationMessages handles GET /messages/conversation/{conversationID}.
// Returns the conversation's messages oldest first and, as a side effect,
// marks every message authored by someone else as read by the caller:
// viewing the thread is how the caller catches up.
func listConversationMessages(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["conversationID"]
	viewer, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	msgs, _, err := store.ListMessages(convID, viewer, true)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONList(w, http.StatusOK, msgs, len(msgs))
}
