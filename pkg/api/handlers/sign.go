package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"tradepost/pkg/logger"
	"tradepost/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterSigning registers the identity signing endpoint. Backend services
// call it to mint X-User-Signature values for their users; the caller's own
// API key is the signing secret, so the gateway must have authenticated the
// key before this handler runs.
func RegisterSigning(r *mux.Router) {
	r.HandleFunc("/_sign", signHandler).Methods(http.MethodPost)
}

func signHandler(w http.ResponseWriter, r *http.Request) {
	role := r.Header.Get("X-Role-Name")
	if role != "backend" {
		logger.Warn("sign_forbidden", "role", role, "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	authz := r.Header.Get("Authorization")
	var key string
	if len(authz) > 7 && (authz[:7] == "Bearer " || authz[:7] == "bearer ") {
		key = authz[7:]
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		logger.Warn("sign_missing_api_key", "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusUnauthorized, "missing api key")
		return
	}

	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.UserID == "" {
		utils.JSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload.UserID))
	sig := hex.EncodeToString(mac.Sum(nil))
	utils.JSONData(w, http.StatusOK, map[string]string{"user_id": payload.UserID, "signature": sig})
}
