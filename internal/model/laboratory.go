package model

import "time"

// Laboratory is a bookable room. Deleted laboratories are kept with
// IsActive=false so reservation history keeps its details.
type Laboratory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
