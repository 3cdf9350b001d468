package vault

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"vaultfs/pkg/models"
)

// List returns the immediate children of the given subfolder, folders first,
// each file joined with its metadata record (digest, share token). A subpath
// that resolves outside the user root yields an empty listing rather than an
// error; so does a folder that does not exist. The metadata document itself
// never appears.
func (s *Store) List(userID int64, subpath string) ([]models.FileEntry, error) {
	abs, rel, err := s.resolve(userID, subpath)
	if err != nil {
		var pathErr InvalidPathError
		if errors.As(err, &pathErr) {
			return []models.FileEntry{}, nil
		}
		return nil, err
	}

	dirEntries, err := os.ReadDir(abs)
	if os.IsNotExist(err) {
		return []models.FileEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := s.loadMetadata(userID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.FileEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if rel == "" && name == metadataFileName {
			continue
		}
		entryRel := joinRel(rel, name)

		if de.IsDir() {
			entries = append(entries, models.FileEntry{
				Name:         name,
				Type:         models.EntryTypeFolder,
				RelativePath: entryRel,
			})
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}
		entry := models.FileEntry{
			Name:         name,
			Type:         models.EntryTypeFile,
			Size:         info.Size(),
			SizeHuman:    humanize.IBytes(uint64(info.Size())), //nolint:gosec // sizes are non-negative
			RelativePath: entryRel,
		}
		if meta, ok := doc[entryRel]; ok {
			entry.ContentDigest = meta.Hash
			entry.ShareToken = meta.ShareToken
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == models.EntryTypeFolder
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// CreateFolder creates an empty folder under subpath. Unlike file saves,
// folder creation does not auto-rename: an existing target is an error.
func (s *Store) CreateFolder(userID int64, subpath, name string) (string, error) {
	name = SanitizeName(name)
	parentAbs, parentRel, err := s.resolveFolder(userID, subpath)
	if err != nil {
		return "", err
	}

	rel := joinRel(parentRel, name)
	abs := filepath.Join(parentAbs, name)

	if _, err := os.Stat(abs); err == nil {
		return "", AlreadyExistsError{Path: rel}
	}
	if err := os.Mkdir(abs, dirPerm); err != nil {
		return "", err
	}
	return rel, nil
}
