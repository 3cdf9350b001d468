package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// hashBlockSize is the read granularity for digest computation. Content is
// never buffered whole in memory.
const hashBlockSize = 64 * 1024

// digestLength is the length of a hex-encoded SHA-256 digest.
const digestLength = 64

// DigestReader consumes the reader and returns the hex SHA-256 digest of its
// content.
func DigestReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(hasher, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// DigestStream digests a seekable stream and rewinds it to the start, so the
// caller can reuse the stream afterward.
func DigestStream(rs io.ReadSeeker) (string, error) {
	digest, err := DigestReader(rs)
	if err != nil {
		return "", err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return digest, nil
}

// DigestFile digests a file on disk. Identical bytes produce the identical
// digest regardless of whether they were hashed from a stream or a path.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // callers pass sandbox-resolved paths
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return DigestReader(f)
}

// ValidDigest reports whether s looks like a hex SHA-256 digest.
func ValidDigest(s string) bool {
	if len(s) != digestLength {
		return false
	}
	for _, char := range s {
		if (char < '0' || char > '9') && (char < 'a' || char > 'f') {
			return false
		}
	}
	return true
}
