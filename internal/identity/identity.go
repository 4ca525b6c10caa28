// Package identity implements the deterministic naming scheme shared by the
// vector store and the metadata sidecar store: content hashes, point ids,
// and sidecar file paths are all pure functions of a file's path and content.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PointNamespace is the fixed v5 UUID namespace baked into the binary.
// Changing it is a breaking change: every point id derived from it changes,
// so the collection would need a full reindex under the new value.
var PointNamespace = uuid.MustParse("8f14e45f-ceea-467e-adc8-65f5a6b5c8d9")

// ForwardSlash normalizes path separators to "/" without touching case.
func ForwardSlash(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// ContentHash returns the lowercase hex SHA-256 digest of text's UTF-8 bytes.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PointID computes the v5 UUID for a path, optionally scoped to a chunk
// index. It is a pure function of (path, chunkIndex): re-indexing the same
// path always produces the same ids.
func PointID(path string, chunkIndex *int) uuid.UUID {
	key := strings.ToLower(ForwardSlash(path))
	if chunkIndex != nil {
		key = key + "#" + strconv.Itoa(*chunkIndex)
	}
	return uuid.NewSHA1(PointNamespace, []byte(key))
}

// normalizedPath lowercases the path, forces forward slashes, and drops the
// ":" following a leading single-letter drive prefix (e.g. "c:/foo" ->
// "c/foo"), matching the sidecar filename contract.
func normalizedPath(path string) string {
	p := strings.ToLower(ForwardSlash(path))
	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		p = p[:1] + p[2:]
	}
	return p
}

func isDriveLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}

// SidecarPath returns the on-disk path of the metadata sidecar for path
// under dir.
func SidecarPath(path, dir string) string {
	sum := sha256.Sum256([]byte(normalizedPath(path)))
	name := hex.EncodeToString(sum[:]) + ".meta.json"
	return filepath.Join(dir, name)
}
