package api

import (
	"net/http"

	"tradepost/pkg/api/handlers"
	"tradepost/pkg/auth"
	"tradepost/pkg/telemetry"

	"github.com/gorilla/mux"
)

// Handler builds the application router: every /v1 route behind the
// signature middleware, admin routes on their own subrouter, request
// metrics on everything. The API-key gateway wraps this handler one level
// up, so the role header is already resolved by the time a request lands
// here.
func Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(telemetry.Middleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireSignedUser)

	handlers.RegisterConversations(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterUsers(v1)
	handlers.RegisterItems(v1)
	handlers.RegisterReports(v1)
	handlers.RegisterSigning(v1)

	admin := v1.PathPrefix("/admin").Subrouter()
	handlers.RegisterAdmin(admin)

	return r
}
