package models

// User is a member of the marketplace user directory. Conversations and
// items reference users by ID; handlers resolve references into these
// summaries when populating responses.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Photo     string `json:"photo,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
}
