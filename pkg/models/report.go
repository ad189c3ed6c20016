package models

// Report moderation states.
const (
	ReportOpen      = "open"
	ReportReviewing = "reviewing"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// ValidReportStatus reports whether s names a known report state.
func ValidReportStatus(s string) bool {
	switch s {
	case ReportOpen, ReportReviewing, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// ReportClosed reports whether s is a terminal state.
func ReportClosed(s string) bool {
	return s == ReportResolved || s == ReportDismissed
}

// Report is an abuse report filed against an item and/or a user. Admins
// drive the status transitions; the moderation purge job expires reports
// that have been closed for longer than the configured period.
type Report struct {
	ID           string `json:"id"`
	Reporter     string `json:"reporter"`
	Item         string `json:"item,omitempty"`
	ReportedUser string `json:"reported_user,omitempty"`
	Reason       string `json:"reason"`
	Status       string `json:"status"`
	CreatedTS    int64  `json:"created_ts,omitempty"`
	UpdatedTS    int64  `json:"updated_ts,omitempty"`
}
