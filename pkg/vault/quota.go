package vault

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"vaultfs/pkg/log"
	"vaultfs/pkg/models"
)

// TempUsage returns the number of bytes the user currently holds in the
// chunk temp area, across all in-flight uploads. This is charged against the
// quota on every upload check so a user cannot bypass the ceiling by parking
// many small chunks before merging.
func (s *Store) TempUsage(userID int64) int64 {
	dir := filepath.Join(s.tempDir, strconv.FormatInt(userID, 10))
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // a vanished entry simply does not count
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to walk temp area")
	}
	return total
}

// checkCapacity verifies that additional bytes fit under the user's quota,
// counting committed bytes plus the current temp-area consumption. It is
// called before any disk mutation; a rejection leaves no partial writes.
func (s *Store) checkCapacity(user *models.User, additional int64) error {
	tempUsed := s.TempUsage(user.ID)
	if !user.HasSpace(tempUsed + additional) {
		return QuotaExceededError{
			Requested: additional,
			Remaining: user.QuotaBytes - user.UsedBytes - tempUsed,
		}
	}
	return nil
}

// RecomputeUsage walks the user's root and returns the sum of committed file
// sizes, skipping the metadata document. Deletes use this instead of
// subtracting so a crash between file removal and counter update can never
// leave the counter drifted; the next recompute self-heals it.
func (s *Store) RecomputeUsage(userID int64) (int64, error) {
	root, err := s.userRoot(userID)
	if err != nil {
		return 0, err
	}

	metaPath := filepath.Join(root, metadataFileName)
	var total int64
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p == metaPath || p == metaPath+".tmp" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // deleted mid-walk
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
