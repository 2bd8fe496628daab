package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashParts joins parts with a separator that cannot appear in normalised text
// before hashing, so ("a b", "c") and ("a", "b c") never collide.
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "\x1f"))
}

func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
