package vault

import (
	"encoding/json"
	"os"
	"path/filepath"

	"vaultfs/pkg/log"
)

// FileMeta is the per-file metadata record: content digest plus an optional
// share token. Earlier releases persisted a bare digest string instead of
// the structured form; decoding accepts both shapes and only the canonical
// struct leaves this file.
type FileMeta struct {
	Hash       string `json:"hash"`
	ShareToken string `json:"share_token,omitempty"`
}

// UnmarshalJSON decodes either the structured record or a legacy bare digest
// string.
func (m *FileMeta) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var digest string
		if err := json.Unmarshal(data, &digest); err != nil {
			return err
		}
		m.Hash = digest
		m.ShareToken = ""
		return nil
	}

	type plain FileMeta
	var rec plain
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*m = FileMeta(rec)
	return nil
}

// metadata is the per-user document: relative file path -> record.
type metadata map[string]FileMeta

func (s *Store) metadataPath(userID int64) (string, error) {
	root, err := s.userRoot(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, metadataFileName), nil
}

// readMetadata reads and decodes the user's metadata document, reporting
// whether any legacy bare-string records were found. A missing or corrupt
// document degrades to an empty map: metadata is an integrity and sharing
// aid, not the source of truth for file existence.
func (s *Store) readMetadata(userID int64) (metadata, bool, error) {
	docPath, err := s.metadataPath(userID)
	if err != nil {
		return nil, false, err
	}

	raw, err := os.ReadFile(docPath) //nolint:gosec // path is built from the user root
	if os.IsNotExist(err) {
		return metadata{}, false, nil
	}
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to read metadata, treating as empty")
		return metadata{}, false, nil
	}

	// Decode twice: once into the canonical shape, once into raw values to
	// detect legacy bare-string records.
	doc := metadata{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Corrupt metadata, treating as empty")
		return metadata{}, false, nil
	}

	legacy := false
	var shapes map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shapes); err == nil {
		for _, val := range shapes {
			if len(val) > 0 && val[0] == '"' {
				legacy = true
				break
			}
		}
	}

	return doc, legacy, nil
}

// loadMetadata reads the user's metadata document for read-only operations.
// Legacy records are decoded transparently but the document is left
// untouched on disk: read paths do not hold the per-user lock, so a read
// must never turn into a write that could race a concurrent mutation.
func (s *Store) loadMetadata(userID int64) (metadata, error) {
	doc, _, err := s.readMetadata(userID)
	return doc, err
}

// loadMetadataForWrite is the loader for mutating operations, whose callers
// hold the per-user lock. A document still carrying legacy bare-string
// records is rewritten in canonical form before use.
func (s *Store) loadMetadataForWrite(userID int64) (metadata, error) {
	doc, legacy, err := s.readMetadata(userID)
	if err != nil {
		return nil, err
	}
	if legacy {
		if err := s.saveMetadata(userID, doc); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to rewrite migrated metadata")
		}
	}
	return doc, nil
}

// saveMetadata writes the whole document. Write-to-temp plus rename keeps a
// crash from leaving a truncated document behind. The caller is responsible
// for serializing read-modify-write cycles per user.
func (s *Store) saveMetadata(userID int64, doc metadata) error {
	docPath, err := s.metadataPath(userID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	tmp := docPath + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return err
	}
	if err := os.Rename(tmp, docPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
