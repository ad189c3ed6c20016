package models

// Item moderation states. New listings start pending and become visible
// once an admin approves them.
const (
	ItemPending  = "pending"
	ItemActive   = "active"
	ItemRejected = "rejected"
)

// Item is a marketplace listing. Conversations may be scoped to one item.
type Item struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Photo      string `json:"photo,omitempty"`
	Category   string `json:"category,omitempty"`
	PriceCents int64  `json:"price_cents,omitempty"`
	Seller     string `json:"seller"`
	Status     string `json:"status"`
	CreatedTS  int64  `json:"created_ts,omitempty"`
	UpdatedTS  int64  `json:"updated_ts,omitempty"`
	// RejectedTS records when moderation rejected the item (ns); the
	// moderation purge job uses it to expire stale rejections.
	RejectedTS int64 `json:"rejected_ts,omitempty"`
}
