package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"vaultfs/pkg/log"
	"vaultfs/pkg/models"
)

// uploadIDPattern is the only accepted shape for client-chosen upload ids.
// Path separators and traversal characters never reach the filesystem.
var uploadIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidUploadID reports whether id is acceptable as a chunk-upload
// identifier.
func ValidUploadID(id string) bool {
	return uploadIDPattern.MatchString(id)
}

func (s *Store) userTempDir(userID int64) string {
	return filepath.Join(s.tempDir, strconv.FormatInt(userID, 10))
}

func (s *Store) chunkDir(userID int64, uploadID string) string {
	return filepath.Join(s.userTempDir(userID), uploadID)
}

// SaveChunk stores one chunk of a pending upload as {uploadID}/{index}.
// Re-sending an index overwrites the previous bytes, so retries are
// idempotent. The quota check counts the chunk against committed bytes plus
// all temp-area bytes the user already holds.
func (s *Store) SaveChunk(user *models.User, uploadID string, index int, r io.Reader, size int64) error {
	if !ValidUploadID(uploadID) {
		return InvalidPathError{Path: uploadID}
	}
	if index < 0 {
		return fmt.Errorf("chunk index must not be negative, got %d", index)
	}

	if err := s.checkCapacity(user, size); err != nil {
		return err
	}

	dir := s.chunkDir(user.ID, uploadID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	chunkPath := filepath.Join(dir, strconv.Itoa(index))
	dst, err := os.OpenFile(chunkPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //nolint:gosec // id and index are validated
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, r)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(chunkPath); removeErr != nil {
			log.Error().Err(removeErr).Str("chunk", chunkPath).Msg("Failed to remove partial chunk")
		}
		return err
	}

	log.Debug().Int64("user_id", user.ID).Str("upload_id", uploadID).Int("index", index).Msg("Chunk stored")
	return nil
}

// MergeChunks assembles a completed chunk set into a committed file. Every
// call is terminal for the pending upload: the chunk directory is removed on
// success, on failure and on quota rejection, so abandoned chunk sets never
// linger as permanent quota consumption. A partially written destination is
// removed on mid-merge failure.
func (s *Store) MergeChunks(user *models.User, uploadID, originalName string, totalChunks int, targetFolder string) (*models.UploadResponse, error) {
	if !ValidUploadID(uploadID) {
		return nil, InvalidPathError{Path: uploadID}
	}
	if totalChunks <= 0 {
		return nil, fmt.Errorf("total chunks must be positive, got %d", totalChunks)
	}

	dir := s.chunkDir(user.ID, uploadID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, NotFoundError{Path: uploadID}
	}

	// Completeness check: indices 0..total-1 must all be present.
	var totalSize int64
	for i := 0; i < totalChunks; i++ {
		info, err := os.Stat(filepath.Join(dir, strconv.Itoa(i)))
		if os.IsNotExist(err) {
			s.removeChunkDir(user.ID, uploadID, dir)
			return nil, MissingChunkError{Index: i}
		}
		if err != nil {
			s.removeChunkDir(user.ID, uploadID, dir)
			return nil, err
		}
		totalSize += info.Size()
	}

	// Re-check quota against the final committed size. The chunks being
	// merged are consumed, so only temp bytes from the user's other
	// in-flight uploads still count; recomputing the full ledger here closes
	// the overshoot window between concurrent merges for the same user
	// (callers hold the per-user lock).
	otherTemp := s.TempUsage(user.ID) - totalSize
	if otherTemp < 0 {
		otherTemp = 0
	}
	if !user.HasSpace(otherTemp + totalSize) {
		s.removeChunkDir(user.ID, uploadID, dir)
		return nil, QuotaExceededError{
			Requested: totalSize,
			Remaining: user.QuotaBytes - user.UsedBytes - otherTemp,
		}
	}

	name := SanitizeName(originalName)
	folderAbs, folderRel, err := s.resolveFolder(user.ID, targetFolder)
	if err != nil {
		s.removeChunkDir(user.ID, uploadID, dir)
		return nil, err
	}
	name, destPath := availableName(folderAbs, folderRel, name)
	rel := joinRel(folderRel, name)

	// The chunk directory is released whatever happens past this point.
	defer s.removeChunkDir(user.ID, uploadID, dir)

	digest, written, err := concatChunks(destPath, dir, totalChunks)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Str("upload_id", uploadID).Msg("Chunk merge failed")
		return nil, err
	}

	doc, err := s.loadMetadataForWrite(user.ID)
	if err != nil {
		return nil, err
	}
	doc[rel] = FileMeta{Hash: digest}
	if err := s.saveMetadata(user.ID, doc); err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("upload_id", uploadID).
		Str("path", rel).
		Int64("size", written).
		Int("chunks", totalChunks).
		Msg("Chunked upload merged")

	return &models.UploadResponse{
		Name:         name,
		RelativePath: rel,
		Size:         written,
		Digest:       digest,
	}, nil
}

// concatChunks writes chunks 0..total-1 in index order into destPath,
// hashing the concatenation as it goes. On any error the partial destination
// is removed.
func concatChunks(destPath, dir string, total int) (string, int64, error) {
	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm) //nolint:gosec // sandbox-resolved path
	if err != nil {
		return "", 0, err
	}

	hasher := sha256.New()
	out := io.MultiWriter(dst, hasher)

	var written int64
	copyAll := func() error {
		for i := 0; i < total; i++ {
			src, err := os.Open(filepath.Join(dir, strconv.Itoa(i))) //nolint:gosec // index-named chunk inside the upload dir
			if err != nil {
				return err
			}
			n, err := io.Copy(out, src)
			closeErr := src.Close()
			if err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			written += n
		}
		return nil
	}

	err = copyAll()
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(destPath); removeErr != nil {
			log.Error().Err(removeErr).Str("path", destPath).Msg("Failed to remove partial merge output")
		}
		return "", 0, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), written, nil
}

// CancelUpload discards a pending upload's chunk directory. It reports
// NotFoundError when no such upload exists; cancelling is otherwise safe at
// any state.
func (s *Store) CancelUpload(userID int64, uploadID string) error {
	if !ValidUploadID(uploadID) {
		return InvalidPathError{Path: uploadID}
	}

	dir := s.chunkDir(userID, uploadID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NotFoundError{Path: uploadID}
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}

	log.Info().Int64("user_id", userID).Str("upload_id", uploadID).Msg("Upload cancelled")
	return nil
}

// SweepTemp reclaims every pending upload the user has abandoned. No
// background reaper runs, so callers invoke this at a defined point, such as
// session start. It returns the number of chunk sets removed.
func (s *Store) SweepTemp(userID int64) (int, error) {
	dir := s.userTempDir(userID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int64("user_id", userID).Int("removed", removed).Msg("Swept orphaned uploads")
	}
	return removed, nil
}

func (s *Store) removeChunkDir(userID int64, uploadID, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("upload_id", uploadID).Msg("Failed to remove chunk directory")
	}
}
