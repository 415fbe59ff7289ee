// Package docid provides a deterministic document ID from a source file path.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const prefix = "doc:"

// ForPath returns a stable document ID for the given absolute path.
// Same path always yields the same ID. Used as the cache and render request key.
func ForPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// ForPage returns a stable key for one page of a document, used to
// deduplicate concurrent render requests.
func ForPage(absolutePath string, page int) string {
	return ForPath(absolutePath) + ":" + strconv.Itoa(page)
}
