package domain

import "time"

// Location is a member's last reported position. UpdatedAt is stamped
// by the coordinator, not taken from the client clock, so ordering is
// consistent across members. A Location is always replaced wholesale.
type Location struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
