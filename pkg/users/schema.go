package users

// Schema contains the SQL statements to create the user database schema.
const Schema = `
-- Users table: accounts with quota accounting
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    is_admin      BOOLEAN DEFAULT FALSE,
    quota_bytes   INTEGER NOT NULL,
    used_bytes    INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`

// usernameMinLength is the minimum length for a username.
const usernameMinLength = 3

// usernameMaxLength is the maximum length for a username.
const usernameMaxLength = 32

// bcryptCost is the work factor for password hashing.
const bcryptCost = 12
