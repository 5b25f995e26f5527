package typecast

import (
	"crypto/md5"
	"encoding/hex"
)

const DefaultHashLen = 4

// TruncateName shortens name to a repeatable mangled version of the given
// length: the leading runes are kept and the tail is replaced by a prefix of
// the md5 hex digest of the full name. A length <= 0 disables truncation.
//
// Names sharing the kept prefix collide when their digest prefixes collide.
func TruncateName(name string, length, hashLen int) string {
	runes := []rune(name)
	if length <= 0 || len(runes) <= length {
		return name
	}
	sum := md5.Sum([]byte(name))
	digest := hex.EncodeToString(sum[:])
	hashLen = min(hashLen, length, len(digest))
	if hashLen < 0 {
		hashLen = 0
	}
	return string(runes[:length-hashLen]) + digest[:hashLen]
}
