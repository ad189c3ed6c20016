package handlers

import (
	"errors"
	"net/http"

	"tradepost/pkg/logger"
	"tradepost/pkg/store"
	"tradepost/pkg/utils"
)

// writeStoreErr maps store sentinel errors to the response taxonomy. Any
// other error is logged and reported as a generic 500; internal detail
// never reaches the client.
func writeStoreErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrForbidden):
		utils.JSONError(w, http.StatusForbidden, "forbidden")
	default:
		logger.Error("handler_store_error", "path", r.URL.Path, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// isAdmin checks whether the gateway resolved an admin or backend caller.
func isAdmin(r *http.Request) bool {
	role := r.Header.Get("X-Role-Name")
	return role == "admin" || role == "backend"
}
