package vault

import (
	"os"

	"vaultfs/pkg/log"
	"vaultfs/pkg/models"
)

// Download resolves a file for serving and reports its integrity status. The
// returned absolute path is safe to hand to the HTTP layer. A file with no
// stored digest is served with IntegrityUnverified: legacy files and files
// whose metadata write lost a race with a crash stay reachable, and the
// caller decides how loudly to surface the unverified state. A digest
// mismatch is returned as IntegrityError.
func (s *Store) Download(userID int64, relPath string) (string, models.IntegrityStatus, error) {
	abs, rel, err := s.resolve(userID, relPath)
	if err != nil {
		return "", "", err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", "", NotFoundError{Path: rel}
	}
	if err != nil {
		return "", "", err
	}
	if info.IsDir() || rel == "" || rel == metadataFileName {
		return "", "", NotFoundError{Path: rel}
	}

	doc, err := s.loadMetadata(userID)
	if err != nil {
		return "", "", err
	}
	meta, ok := doc[rel]
	if !ok || meta.Hash == "" {
		return abs, models.IntegrityUnverified, nil
	}

	digest, err := DigestFile(abs)
	if err != nil {
		return "", "", err
	}
	if digest != meta.Hash {
		log.Warn().Int64("user_id", userID).Str("path", rel).Msg("Integrity mismatch on download")
		return "", models.IntegrityMismatch, IntegrityError{Path: rel}
	}

	return abs, models.IntegrityVerified, nil
}

// VerifyIntegrity recomputes the file's digest and compares it to the stored
// one. A file with no stored digest is treated as valid: an explicit legacy
// policy, not a security guarantee. A missing file is invalid.
func (s *Store) VerifyIntegrity(userID int64, relPath string) bool {
	abs, rel, err := s.resolve(userID, relPath)
	if err != nil {
		return false
	}

	doc, err := s.loadMetadata(userID)
	if err != nil {
		return false
	}
	meta, ok := doc[rel]
	if !ok || meta.Hash == "" {
		return true
	}

	if _, err := os.Stat(abs); err != nil {
		return false
	}
	digest, err := DigestFile(abs)
	if err != nil {
		return false
	}
	return digest == meta.Hash
}
