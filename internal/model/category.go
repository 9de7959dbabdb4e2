package model

import "time"

// Category is an owner-defined bucket for transactions.
type Category struct {
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}
