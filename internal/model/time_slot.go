package model

import "time"

// TimeSlot is a fixed wall-clock window ("HH:MM"-"HH:MM") shared by every
// laboratory. Slots never overlap.
type TimeSlot struct {
	ID        string    `json:"id"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	IsActive  bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Overlaps reports whether the half-open windows [s.Start, s.End) and
// [o.Start, o.End) intersect. "HH:MM" strings compare lexically.
func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return s.Start < o.End && o.Start < s.End
}
