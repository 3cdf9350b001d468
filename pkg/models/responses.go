package models

// UploadResponse is returned by direct uploads and chunk merges.
type UploadResponse struct {
	Name         string `json:"name"`
	RelativePath string `json:"relative_path"`
	Size         int64  `json:"size"`
	Digest       string `json:"digest"`
}

// ListResponse wraps a folder listing together with the listed subpath.
type ListResponse struct {
	Path    string      `json:"path"`
	Entries []FileEntry `json:"entries"`
}

// QuotaResponse reports a user's storage consumption.
type QuotaResponse struct {
	QuotaBytes     int64  `json:"quota_bytes"`
	UsedBytes      int64  `json:"used_bytes"`
	RemainingBytes int64  `json:"remaining_bytes"`
	QuotaHuman     string `json:"quota_human"`
	UsedHuman      string `json:"used_human"`
}

// ShareResponse carries an issued share token.
type ShareResponse struct {
	Path  string `json:"path"`
	Token string `json:"token"`
}

// ArchiveResponse lists the inner entries of a zip container.
type ArchiveResponse struct {
	Path    string   `json:"path"`
	Entries []string `json:"entries"`
}

// TokenResponse carries a login token.
type TokenResponse struct {
	Token string `json:"token"`
}
