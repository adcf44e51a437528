package object

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is wrapped by object database backends when an id cannot be
// resolved.
var ErrNotFound = errors.New("object not found")

const (
	hexLenSHA1   = 40
	hexLenSHA256 = 64
)

// Header returns the envelope header "type len" without the trailing NUL.
func Header(objType ObjectType, size int) string {
	return string(objType) + " " + strconv.Itoa(size)
}

// HashObject computes the git object id of the envelope "type len\0content"
// in the SHA-1 object format.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	h.Write([]byte(Header(objType, len(data))))
	h.Write([]byte{0})
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ParseHash validates s as a full-length hex object id and returns it
// lowercased.
func ParseHash(s string) (Hash, error) {
	if len(s) != hexLenSHA1 && len(s) != hexLenSHA256 {
		return "", fmt.Errorf("invalid object id %q: length %d", s, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// Short returns the abbreviated form used in messages.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Bytes decodes the hex id. Invalid ids decode to nil.
func (h Hash) Bytes() []byte {
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil
	}
	return raw
}
