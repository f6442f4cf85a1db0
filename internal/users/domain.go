package users

import "time"

// User represents a user account for management, without credential
// material.
type User struct {
	ID        int64
	Username  string
	RealName  string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
