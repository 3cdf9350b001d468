package models

// EntryType distinguishes files from folders in listings.
type EntryType string

const (
	EntryTypeFile   EntryType = "file"
	EntryTypeFolder EntryType = "folder"
)

// FileEntry is one row of a folder listing. It is derived state: the
// filesystem provides name/size, the metadata document provides digest and
// share token. Folders never carry metadata.
type FileEntry struct {
	Name          string    `json:"name"`
	Type          EntryType `json:"type"`
	Size          int64     `json:"size"`
	SizeHuman     string    `json:"size_human,omitempty"`
	RelativePath  string    `json:"relative_path"`
	ContentDigest string    `json:"content_digest,omitempty"`
	ShareToken    string    `json:"share_token,omitempty"`
}

// IntegrityStatus describes the outcome of a digest comparison on download.
type IntegrityStatus string

const (
	// IntegrityVerified means the recomputed digest matched the stored one.
	IntegrityVerified IntegrityStatus = "verified"
	// IntegrityUnverified means no digest is on record for the file, so no
	// comparison was possible. The file is still served.
	IntegrityUnverified IntegrityStatus = "unverified"
	// IntegrityMismatch means the on-disk bytes no longer match the stored
	// digest.
	IntegrityMismatch IntegrityStatus = "mismatch"
)
