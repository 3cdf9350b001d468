package vault

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// illegalNameChars are stripped from basenames before resolution. Path
// separators are included so a basename can never smuggle in a directory
// component. Non-ASCII text passes through untouched.
const illegalNameChars = `/\:*?"<>|`

// SanitizeName reduces an uploaded filename to a safe basename: any
// directory prefix is dropped, filesystem-illegal and control characters are
// removed, and leading dot sequences are stripped so the result can never be
// hidden or be a relative reference. An empty result falls back to a random
// UUID so the upload still succeeds under a usable name.
func SanitizeName(name string) string {
	// Keep only the final path segment, whichever separator style was used.
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if strings.ContainsRune(illegalNameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.TrimLeft(strings.TrimSpace(b.String()), ".")

	if cleaned == "" || cleaned == "/" {
		return uuid.NewString()
	}
	return cleaned
}

// normalizeRel cleans a user-supplied relative path into canonical
// slash-separated form. It returns ok=false for paths that are absolute or
// climb above the root after normalization.
func normalizeRel(relPath string) (string, bool) {
	relPath = strings.ReplaceAll(relPath, `\`, "/")
	if strings.HasPrefix(relPath, "/") {
		return "", false
	}
	cleaned := path.Clean(relPath)
	if cleaned == "." {
		return "", true
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

// resolve maps a user-relative logical path to an absolute filesystem
// location inside the user's root, creating the root lazily. The returned
// rel is the normalized slash-separated path used as the metadata key. Any
// path that would escape the root yields InvalidPathError; escapes are never
// silently truncated to the root.
func (s *Store) resolve(userID int64, relPath string) (abs string, rel string, err error) {
	root, err := s.userRoot(userID)
	if err != nil {
		return "", "", err
	}

	rel, ok := normalizeRel(relPath)
	if !ok {
		return "", "", InvalidPathError{Path: relPath}
	}
	if rel == "" {
		return root, "", nil
	}

	abs = filepath.Join(root, filepath.FromSlash(rel))

	// Prefix check on the absolute result defends in depth against anything
	// normalizeRel missed.
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", "", err
	}
	target, err := filepath.Abs(abs)
	if err != nil {
		return "", "", err
	}
	if target != rootAbs && !strings.HasPrefix(target, rootAbs+string(os.PathSeparator)) {
		return "", "", InvalidPathError{Path: relPath}
	}

	return abs, rel, nil
}

// resolveFolder resolves a target folder and creates it (and any missing
// intermediate directories) inside the user's root.
func (s *Store) resolveFolder(userID int64, folder string) (abs string, rel string, err error) {
	abs, rel, err = s.resolve(userID, folder)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return "", "", err
	}
	return abs, rel, nil
}

// joinRel joins a folder key and a basename into a metadata key.
func joinRel(folderRel, name string) string {
	if folderRel == "" {
		return name
	}
	return folderRel + "/" + name
}
