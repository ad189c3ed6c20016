package models

// Conversation is a persistent thread between two or more participants,
// optionally scoped to one catalog item. A conversation between a given
// unordered participant pair about a given item (or no item) is unique.
type Conversation struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	// Item is the referenced catalog item id; empty means the conversation
	// is not scoped to an item.
	Item          string `json:"item,omitempty"`
	LastMessageID string `json:"last_message_id,omitempty"`
	CreatedTS     int64  `json:"created_ts,omitempty"`
	UpdatedTS     int64  `json:"updated_ts,omitempty"`
}

// HasParticipant reports whether id is listed as a participant. Every
// authorization check on conversations and messages goes through this
// predicate; identities are compared as raw ids, never as populated
// sub-objects.
func (c *Conversation) HasParticipant(id string) bool {
	if id == "" {
		return false
	}
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// ConversationView is a conversation enriched for list/detail responses:
// participant references resolved to user summaries, the item reference
// resolved, the last message populated with its sender, and the viewer's
// unread count computed. Views are derived per request and never stored.
type ConversationView struct {
	ID           string   `json:"id"`
	Participants []User   `json:"participants"`
	Item         *Item    `json:"item,omitempty"`
	LastMessage  *Message `json:"last_message,omitempty"`
	LastSender   *User    `json:"last_sender,omitempty"`
	UnreadCount  int      `json:"unread_count"`
	CreatedTS    int64    `json:"created_ts,omitempty"`
	UpdatedTS    int64    `json:"updated_ts,omitempty"`
}
