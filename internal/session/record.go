// Package session implements the Redis backed session cache: the
// token → record and user → token index families that hold each
// authenticated identity together with its resolved permission set.
package session

// Record is the cached authenticated identity stored under a token.
// UserID, Username and LoginTimeMs are set once at login; Roles and
// Permissions are rewritten in place when the role/permission graph
// changes.
type Record struct {
	UserID      int64    `json:"user_id"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	LoginTimeMs int64    `json:"login_time_ms"`
}

// HasPermission reports whether the record's resolved set contains code.
func (r *Record) HasPermission(code string) bool {
	for _, p := range r.Permissions {
		if p == code {
			return true
		}
	}
	return false
}
