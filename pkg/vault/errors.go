package vault

import "fmt"

// QuotaExceededError is returned when an upload or merge would push the user
// past the quota ceiling. No disk mutation happens on this path, except that
// a quota-rejected merge also discards the pending chunk directory.
type QuotaExceededError struct {
	Requested int64
	Remaining int64
}

func (e QuotaExceededError) Error() string {
	return "Quota exceeded."
}

// InvalidPathError is returned when a logical path resolves outside the
// user's root, or when an upload id fails validation.
type InvalidPathError struct {
	Path string
}

func (e InvalidPathError) Error() string {
	return fmt.Sprintf("Invalid path: %s", e.Path)
}

// MissingChunkError names the first absent chunk index found during merge.
type MissingChunkError struct {
	Index int
}

func (e MissingChunkError) Error() string {
	return fmt.Sprintf("Missing chunk %d", e.Index)
}

// NotFoundError is returned when a file, folder, pending upload or share
// token does not exist.
type NotFoundError struct {
	Path string
}

func (e NotFoundError) Error() string {
	if e.Path == "" {
		return "Not found."
	}
	return fmt.Sprintf("Not found: %s", e.Path)
}

// AlreadyExistsError is returned on folder-creation collisions. Files never
// produce it; they auto-rename instead.
type AlreadyExistsError struct {
	Path string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("Already exists: %s", e.Path)
}

// IntegrityError is returned when the on-disk bytes no longer match the
// stored digest.
type IntegrityError struct {
	Path string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("File integrity check failed: %s", e.Path)
}

// UnreadableArchiveError is returned when a file cannot be opened as a zip
// container.
type UnreadableArchiveError struct {
	Path string
}

func (e UnreadableArchiveError) Error() string {
	return fmt.Sprintf("Unreadable archive: %s", e.Path)
}
