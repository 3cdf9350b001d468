package vault

import (
	"os"
	"strconv"

	"github.com/google/uuid"

	"vaultfs/pkg/log"
)

// IssueShareToken attaches a fresh unguessable token to the file's metadata
// record and returns it. A path with no metadata record (never successfully
// uploaded or merged) cannot be shared. Issuing again replaces the previous
// token.
func (s *Store) IssueShareToken(userID int64, relPath string) (string, error) {
	_, rel, err := s.resolve(userID, relPath)
	if err != nil {
		return "", err
	}

	doc, err := s.loadMetadataForWrite(userID)
	if err != nil {
		return "", err
	}
	meta, ok := doc[rel]
	if !ok {
		return "", NotFoundError{Path: rel}
	}

	token := uuid.NewString()
	meta.ShareToken = token
	doc[rel] = meta
	if err := s.saveMetadata(userID, doc); err != nil {
		return "", err
	}

	log.Info().Int64("user_id", userID).Str("path", rel).Msg("Share token issued")
	return token, nil
}

// RevokeShareToken clears the file's share token. It returns false when the
// path has no metadata record or no token to clear.
func (s *Store) RevokeShareToken(userID int64, relPath string) (bool, error) {
	_, rel, err := s.resolve(userID, relPath)
	if err != nil {
		return false, err
	}

	doc, err := s.loadMetadataForWrite(userID)
	if err != nil {
		return false, err
	}
	meta, ok := doc[rel]
	if !ok || meta.ShareToken == "" {
		return false, nil
	}

	meta.ShareToken = ""
	doc[rel] = meta
	if err := s.saveMetadata(userID, doc); err != nil {
		return false, err
	}

	log.Info().Int64("user_id", userID).Str("path", rel).Msg("Share token revoked")
	return true, nil
}

// ResolveShareToken finds the (user, path) a token points at. No token index
// is kept, so this is a linear scan over every user's metadata document;
// first match wins. Tokens are globally unique by construction, not by
// enforcement. Acceptable at the expected user-base scale.
func (s *Store) ResolveShareToken(token string) (int64, string, error) {
	if token == "" {
		return 0, "", NotFoundError{}
	}

	entries, err := os.ReadDir(s.rootDir)
	if os.IsNotExist(err) {
		return 0, "", NotFoundError{}
	}
	if err != nil {
		return 0, "", err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		userID, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		doc, err := s.loadMetadata(userID)
		if err != nil {
			continue
		}
		for rel, meta := range doc {
			if meta.ShareToken == token {
				return userID, rel, nil
			}
		}
	}

	return 0, "", NotFoundError{}
}
