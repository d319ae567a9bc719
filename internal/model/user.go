package model

import "time"

// User owns API keys and recruitments, and appears in participant
// lists under DisplayName.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
