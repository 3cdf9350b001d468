package vault

import (
	"archive/zip"
	"os"
)

// InspectArchive lists the inner entry names of a zip-format container
// without extracting anything, for preview purposes. Any read or format
// error yields UnreadableArchiveError.
func (s *Store) InspectArchive(userID int64, relPath string) ([]string, error) {
	abs, rel, err := s.resolve(userID, relPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return nil, NotFoundError{Path: rel}
	} else if err != nil {
		return nil, err
	}

	reader, err := zip.OpenReader(abs)
	if err != nil {
		return nil, UnreadableArchiveError{Path: rel}
	}
	defer func() { _ = reader.Close() }()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	return names, nil
}
