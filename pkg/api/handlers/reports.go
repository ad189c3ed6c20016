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

// RegisterReports registers abuse report routes onto the router. Filing is
// open to any authenticated user; listing and status transitions are
// admin-only (the gateway enforces the role).
func RegisterReports(r *mux.Router) {
	r.HandleFunc("/reports", createReport).Methods(http.MethodPost)
	r.HandleFunc("/reports", listReports).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}", updateReport).Methods(http.MethodPut)
}

// createReport handles POST /reports. A report targets an item, a user, or
// both, and opens in the "open" state.
func createReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item         string `json:"item_id"`
		ReportedUser string `json:"reported_user_id"`
		Reason       string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	reporter, status, msg := auth.ResolveUserFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	if req.Item == "" && req.ReportedUser == "" {
		utils.JSONError(w, http.StatusBadRequest, "item_id or reported_user_id required")
		return
	}
	if err := validation.ValidateContent(req.Reason); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep := models.Report{
		ID:           utils.GenReportID(),
		Reporter:     reporter,
		Item:         req.Item,
		ReportedUser: req.ReportedUser,
		Reason:       req.Reason,
		Status:       models.ReportOpen,
		CreatedTS:    utils.NowTS(),
	}
	rep.UpdatedTS = rep.CreatedTS
	if err := store.SaveReport(rep); err != nil {
		writeStoreErr(w, r, err)
		return
	}
	logger.Info("report_filed", "report", rep.ID, "item", rep.Item, "reported_user", rep.ReportedUser)
	utils.JSONData(w, http.StatusCreated, rep)
}

// listReports handles GET /reports with an optional status filter.
func listReports(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidReportStatus(status) {
		utils.JSONError(w, http.StatusBadRequest, "unknown report status")
		return
	}
	reps, err := store.ListReports(status)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	utils.JSONList(w, http.StatusOK, reps, len(reps))
}

// updateReport handles PUT /reports/{id}, transitioning the report status.
// Closed reports stay closed; only their pruning is automatic.
func updateReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !models.ValidReportStatus(req.Status) {
		utils.JSONError(w, http.StatusBadRequest, "unknown report status")
		return
	}
	rep, err := store.GetReport(id)
	if err != nil {
		writeStoreErr(w, r, err)
		return
	}
	if models.ReportClosed(rep.Status) && !models.ReportClosed(req.Status) {
		utils.JSONError(w, http.StatusBadRequest, "report already closed")
		return
	}
	rep.Status = req.Status
	rep.UpdatedTS = utils.NowTS()
	if err := store.SaveReport(rep); err != nil {
		writeStoreErr(w, r, err)
		return
	}
	logger.Info("report_status_changed", "report", rep.ID, "status", rep.Status)
	utils.JSONData(w, http.StatusOK, rep)
}
