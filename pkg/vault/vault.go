// Package vault implements the per-user storage core: sandboxed path
// resolution, quota accounting, direct and chunked uploads, folder
// management, share tokens and content-integrity verification.
//
// The package holds no per-user locks of its own. Callers must serialize
// mutating operations for the same user (the HTTP layer does this through
// the user store's keyed lock) so that quota-check-then-write is atomic per
// user. Operations on different users are safe to run concurrently.
package vault

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640

	// metadataFileName is the per-user metadata document stored at the user
	// root. The name is reserved: listings skip it, usage recomputes skip
	// it, and uploads targeting it are treated as a name collision.
	metadataFileName = "metadata.json"
)

// Store is the storage core. rootDir holds one subdirectory per user id;
// tempDir holds in-flight chunk uploads as tempDir/{userID}/{uploadID}/{idx}
// and lives outside every user root so pending chunks are never listed or
// counted as committed bytes.
type Store struct {
	rootDir string
	tempDir string
}

// New creates a Store rooted at rootDir, keeping chunk uploads in tempDir.
func New(rootDir, tempDir string) *Store {
	return &Store{rootDir: rootDir, tempDir: tempDir}
}

// userRoot returns the user's root directory, creating it on first use.
func (s *Store) userRoot(userID int64) (string, error) {
	dir := filepath.Join(s.rootDir, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", err
	}
	return dir, nil
}
