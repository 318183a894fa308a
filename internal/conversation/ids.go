package conversation

import (
	"crypto/rand"
	"encoding/hex"
)

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("conversation: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// newConvID allocates an opaque 8-hex conversation identifier.
func newConvID() string {
	return randomHex(4)
}

// newMessageID allocates a 12-hex message identifier.
func newMessageID() string {
	return randomHex(6)
}
