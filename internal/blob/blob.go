// Package blob stores lot artifacts by content hash.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/coss1333/Qr-market/internal/domain/model"
)

const handlePrefix = "sha256-"

// Handle returns the content address of data.
func Handle(data []byte) string {
	sum := sha256.Sum256(data)
	return handlePrefix + hex.EncodeToString(sum[:])
}

// digest extracts the hex digest from a handle, rejecting anything that is
// not a well-formed content address.
func digest(handle string) (string, error) {
	d, ok := strings.CutPrefix(handle, handlePrefix)
	if !ok || len(d) != sha256.Size*2 {
		return "", fmt.Errorf("%w: blob %q", model.ErrNotFound, handle)
	}
	if _, err := hex.DecodeString(d); err != nil {
		return "", fmt.Errorf("%w: blob %q", model.ErrNotFound, handle)
	}
	return d, nil
}
