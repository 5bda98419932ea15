package domain

import "time"

// Counter is the minimal per-identity actor: increment, decrement, read.
type Counter struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Value     int64     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
