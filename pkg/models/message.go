package models

// Message is a single message inside a conversation. Content is immutable
// after creation; ReadBy is the only field mutated afterwards and only ever
// grows (add-only set, members are never removed).
type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Content      string `json:"content"`
	// ReadBy lists participant ids that have read the message. The sender
	// is included from creation.
	ReadBy []string `json:"read_by"`
	TS     int64    `json:"ts"`
}

// ReadByUser reports whether id is in the message's read set.
func (m *Message) ReadByUser(id string) bool {
	for _, r := range m.ReadBy {
		if r == id {
			return true
		}
	}
	return false
}

// MarkReadBy adds id to the read set; returns false when already present.
func (m *Message) MarkReadBy(id string) bool {
	if m.ReadByUser(id) {
		return false
	}
	m.ReadBy = append(m.ReadBy, id)
	return true
}
