// Package fileid derives deterministic document ids from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file-"

// FileDocID returns a stable document id for a file owned by tenantID.
// The same tenant and cleaned path always yield the same id, so re-ingesting a file
// replaces its chunks and removing it can cascade by id.
func FileDocID(tenantID, absolutePath string) string {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(filepath.Clean(absolutePath)))
	return prefix + hex.EncodeToString(h.Sum(nil))[:32]
}
