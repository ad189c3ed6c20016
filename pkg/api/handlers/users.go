package handlers

import (
	"encoding/json"
	"net/http"

	"tradepost/pkg/models"
	"tradepost/pkg/store"
	"tradepost/pkg/utils"
	"tradepost/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterUsers registers user directory routes onto the router.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users", listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", createUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", getUser).Methods(http.MethodGet)
}

func listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers()
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONList(w, http.StatusOK, users, len(users))
}

// createUser seeds a directory entry. Backend services create users on
// behalf of the marketplace account system; a caller-supplied id is kept so
// identities line up across systems.
func createUser(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateName(u.Name); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if u.ID == "" {
		u.ID = utils.GenUserID()
	} else if err := validation.ValidateUserID(u.ID); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if u.CreatedTS == 0 {
		u.CreatedTS = utils.NowTS()
	}
	if err := store.SaveUser(u); err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONData(w, http.StatusCreated, u)
}

func getUser(w http.ResponseWriter, r *http.Request) {
	u, err := store.GetUser(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONData(w, http.StatusOK, u)
}
