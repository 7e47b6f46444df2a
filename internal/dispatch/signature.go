package dispatch

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Signature computes the gateway request signature: hex(SHA-1(account ∥ secret ∥ stime)).
func Signature(account, secret string, stime int64) string {
	sum := sha1.Sum([]byte(account + secret + strconv.FormatInt(stime, 10)))
	return hex.EncodeToString(sum[:])
}
