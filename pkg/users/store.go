package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	_ "modernc.org/sqlite"

	"vaultfs/pkg/models"
)

// usernamePattern defines the valid format for usernames: 3-32 characters,
// lowercase alphanumeric with underscores and hyphens, starting with a
// letter or digit.
var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)

// Store manages user accounts and quota counters in SQLite. The keyed mutex
// in locks.go provides the per-user serialization the storage core depends
// on for quota-check-then-write atomicity.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	locks userLocks
}

// NewStore opens (creating if necessary) the user database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	ctx := context.Background()

	if _, err := database.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable foreign keys: %w", ErrDatabaseError, err)
	}

	// WAL mode for better concurrency
	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
	}

	store := &Store{db: database}
	if err := store.initialize(); err != nil {
		_ = database.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(context.Background(), Schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ValidateUsername checks if the username is valid.
func ValidateUsername(name string) error {
	if len(name) < usernameMinLength || len(name) > usernameMaxLength {
		return ErrInvalidUsername
	}
	if !usernamePattern.MatchString(name) {
		return ErrInvalidUsername
	}
	return nil
}

// Create adds a new account with a bcrypt-hashed password. A non-positive
// quota falls back to the default.
func (s *Store) Create(username, password string, isAdmin bool, quotaBytes int64) (*models.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if quotaBytes <= 0 {
		quotaBytes = models.DefaultQuotaBytes
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO users (username, password_hash, is_admin, quota_bytes, used_bytes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		username, string(hash), isAdmin, quotaBytes, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return &models.User{
		ID:         userID,
		Username:   username,
		IsAdmin:    isAdmin,
		QuotaBytes: quotaBytes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

const userColumns = `id, username, password_hash, is_admin, quota_bytes, used_bytes, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
		&user.QuotaBytes, &user.UsedBytes, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return user, nil
}

// GetByID retrieves a user by id.
func (s *Store) GetByID(userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// GetByUsername retrieves a user by username.
func (s *Store) GetByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// Authenticate verifies a username/password pair and returns the account.
// Missing users and wrong passwords are indistinguishable to the caller.
func (s *Store) Authenticate(username, password string) (*models.User, error) {
	user, err := s.GetByUsername(username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// List returns all accounts ordered by username.
func (s *Store) List() ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var list []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
			&user.QuotaBytes, &user.UsedBytes, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		list = append(list, user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return list, nil
}

// SetQuota updates the user's quota ceiling.
func (s *Store) SetQuota(userID, quotaBytes int64) error {
	return s.updateField(userID, `quota_bytes`, quotaBytes)
}

// SetUsedBytes overwrites the user's used-bytes counter, typically with the
// result of a recompute-from-disk after deletes.
func (s *Store) SetUsedBytes(userID, usedBytes int64) error {
	return s.updateField(userID, `used_bytes`, usedBytes)
}

// AddUsedBytes adds delta to the user's used-bytes counter after a committed
// save or merge.
func (s *Store) AddUsedBytes(userID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE users SET used_bytes = used_bytes + ?, updated_at = ? WHERE id = ?`,
		delta, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return checkAffected(result)
}

// SetPassword replaces the user's password hash.
func (s *Store) SetPassword(userID int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	return s.updateField(userID, `password_hash`, string(hash))
}

// SetAdmin grants or revokes the admin flag.
func (s *Store) SetAdmin(userID int64, isAdmin bool) error {
	return s.updateField(userID, `is_admin`, isAdmin)
}

// Delete removes an account. The caller is responsible for removing the
// user's on-disk subtree.
func (s *Store) Delete(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(), `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return checkAffected(result)
}

func (s *Store) updateField(userID int64, column string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // column names come from this file only
	result, err := s.db.ExecContext(context.Background(),
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
