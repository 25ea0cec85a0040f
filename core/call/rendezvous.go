package call

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"strings"
)

var (
	salt       = []byte("tutorly.backend.core.call.rendezvous")
	keyEncoder = base32.StdEncoding.WithPadding(base32.NoPadding)
)

const keyLength = 26

// RendezvousKey derives the signaling address of userID for one session.
// Keys only contain [a-z2-7], so they are valid broker peer ids.
func RendezvousKey(secret, sessionID, userID string) string {
	key := sha256.Sum256(append(append([]byte{}, salt...), secret...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return strings.ToLower(keyEncoder.EncodeToString(h.Sum(nil)))[:keyLength]
}
