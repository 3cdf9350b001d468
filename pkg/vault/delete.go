package vault

import (
	"os"
	"strings"

	"vaultfs/pkg/log"
)

// DeleteFile removes the physical file and its metadata entry. The caller
// must recompute the user's used-bytes counter afterward; the store does not
// update it itself.
func (s *Store) DeleteFile(userID int64, relPath string) error {
	abs, rel, err := s.resolve(userID, relPath)
	if err != nil {
		return err
	}
	if rel == "" || (rel == metadataFileName) {
		return NotFoundError{Path: relPath}
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return NotFoundError{Path: rel}
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return NotFoundError{Path: rel}
	}

	if err := os.Remove(abs); err != nil {
		return err
	}

	doc, err := s.loadMetadataForWrite(userID)
	if err != nil {
		return err
	}
	if _, ok := doc[rel]; ok {
		delete(doc, rel)
		if err := s.saveMetadata(userID, doc); err != nil {
			return err
		}
	}

	log.Info().Int64("user_id", userID).Str("path", rel).Msg("File deleted")
	return nil
}

// DeleteFolder removes a directory subtree and every metadata entry beneath
// it. The prefix comparison appends a trailing slash so deleting "docs"
// leaves "docs2/x" untouched. The caller must recompute used bytes; a folder
// delete can remove many files at once.
func (s *Store) DeleteFolder(userID int64, relPath string) error {
	abs, rel, err := s.resolve(userID, relPath)
	if err != nil {
		return err
	}
	if rel == "" {
		// The user root itself is not deletable.
		return InvalidPathError{Path: relPath}
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return NotFoundError{Path: rel}
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return NotFoundError{Path: rel}
	}

	if err := os.RemoveAll(abs); err != nil {
		return err
	}

	doc, err := s.loadMetadataForWrite(userID)
	if err != nil {
		return err
	}
	prefix := rel + "/"
	changed := false
	for key := range doc {
		if strings.HasPrefix(key, prefix) {
			delete(doc, key)
			changed = true
		}
	}
	if changed {
		if err := s.saveMetadata(userID, doc); err != nil {
			return err
		}
	}

	log.Info().Int64("user_id", userID).Str("path", rel).Msg("Folder deleted")
	return nil
}
