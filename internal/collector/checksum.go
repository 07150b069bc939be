package collector

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"servicemon/internal/service"
)

// Checksum computes the lowercase hex digest of a file.
func Checksum(path string, kind service.HashKind) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var h hash.Hash
	switch kind {
	case service.HashSHA1:
		h = sha1.New()
	default:
		h = md5.New()
	}

	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
