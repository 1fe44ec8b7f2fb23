package models

import "time"

// User represents an account record. Users are created on signup and never mutated.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	Name         string    `json:"name" bson:"name"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// Sanitize returns a copy of the user without sensitive fields populated.
func (u User) Sanitize() User {
	u.PasswordHash = ""
	return u
}
