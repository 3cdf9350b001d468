package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vaultfs/pkg/log"
	"vaultfs/pkg/models"
)

// SaveFile stores an incoming stream of size bytes under the user's target
// folder. The quota check (committed plus temp-area bytes) runs before any
// disk mutation. The stored name is the sanitized original, auto-renamed on
// collision so an upload never overwrites an existing file and never fails
// solely because of a name clash. The content digest is computed while the
// bytes are written; the metadata record is written only after the physical
// write succeeds.
func (s *Store) SaveFile(user *models.User, r io.Reader, size int64, originalName, targetFolder string) (*models.UploadResponse, error) {
	if err := s.checkCapacity(user, size); err != nil {
		return nil, err
	}

	name := SanitizeName(originalName)
	folderAbs, folderRel, err := s.resolveFolder(user.ID, targetFolder)
	if err != nil {
		return nil, err
	}

	name, destPath := availableName(folderAbs, folderRel, name)
	rel := joinRel(folderRel, name)

	digest, written, err := writeAndDigest(destPath, r)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Str("path", rel).Msg("Failed to write upload")
		return nil, err
	}

	// A crash between here and the metadata write leaves an orphan file with
	// no recorded digest; integrity checks report it as unverified rather
	// than failing.
	doc, err := s.loadMetadataForWrite(user.ID)
	if err != nil {
		return nil, err
	}
	doc[rel] = FileMeta{Hash: digest}
	if err := s.saveMetadata(user.ID, doc); err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", user.ID).Str("path", rel).Int64("size", written).Msg("File saved")
	return &models.UploadResponse{
		Name:         name,
		RelativePath: rel,
		Size:         written,
		Digest:       digest,
	}, nil
}

// availableName finds a free basename in the folder by appending _1, _2, ...
// before the extension. The metadata document's reserved name at the user
// root is treated as an existing file.
func availableName(folderAbs, folderRel, name string) (string, string) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for counter := 1; ; counter++ {
		if !nameTaken(folderAbs, folderRel, candidate) {
			return candidate, filepath.Join(folderAbs, candidate)
		}
		candidate = base + "_" + strconv.Itoa(counter) + ext
	}
}

func nameTaken(folderAbs, folderRel, name string) bool {
	if folderRel == "" && name == metadataFileName {
		return true
	}
	_, err := os.Stat(filepath.Join(folderAbs, name))
	return err == nil
}

// writeAndDigest streams r into destPath while hashing, returning the hex
// digest and byte count. A failed write removes the partial file.
func writeAndDigest(destPath string, r io.Reader) (string, int64, error) {
	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm) //nolint:gosec // sandbox-resolved path
	if err != nil {
		return "", 0, err
	}

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(dst, hasher), r)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(destPath); removeErr != nil {
			log.Error().Err(removeErr).Str("path", destPath).Msg("Failed to remove partial file")
		}
		return "", 0, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), written, nil
}
