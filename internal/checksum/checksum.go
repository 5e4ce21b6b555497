// Package checksum fingerprints uploaded files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Digest is the hex SHA-256 of a stream plus the number of bytes read.
type Digest struct {
	Sum  string
	Size int64
}

// FromReader hashes r to EOF without buffering it.
func FromReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, err
	}
	return Digest{Sum: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}
