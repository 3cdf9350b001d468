package models

import "time"

// DefaultQuotaBytes is the quota assigned to newly created accounts (100 MiB).
const DefaultQuotaBytes = 100 * 1024 * 1024

// User represents a storage account. The vault core only reads ID,
// QuotaBytes and UsedBytes; the remaining fields belong to the account layer.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	QuotaBytes   int64     `json:"quota_bytes"`
	UsedBytes    int64     `json:"used_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RemainingQuota returns how many more bytes the user may commit.
func (u *User) RemainingQuota() int64 {
	return u.QuotaBytes - u.UsedBytes
}

// HasSpace reports whether size additional bytes fit under the quota ceiling.
func (u *User) HasSpace(size int64) bool {
	return u.UsedBytes+size <= u.QuotaBytes
}
