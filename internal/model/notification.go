package model

import "time"

// Notification is an SMS queued for a client, optionally about an item.
type Notification struct {
	ID             int64     `json:"id" db:"id"`
	RecipientPhone string    `json:"recipient_phone" db:"recipient_phone"`
	Message        string    `json:"message" db:"message"`
	ItemID         *string   `json:"item_id,omitempty" db:"item_id"`
	SentBy         string    `json:"sent_by" db:"sent_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
