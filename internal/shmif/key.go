package shmif

import (
	"crypto/rand"
	"fmt"
)

// MaxKeyLen is the hard cap on a SharedSegmentKey: short enough to fit
// the semaphore and socket-path suffixing rules, with no separator
// characters permitted.
const MaxKeyLen = 31

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxKeyAttempts bounds the draw-and-probe loop in NewSegmentKey; a
// collision after this many CSPRNG draws means the namespace is
// exhausted or unreachable, not that trying again will help.
const maxKeyAttempts = 16

// NewSegmentKey draws a random SharedSegmentKey and probes it for
// uniqueness with exists. It is a graphical alnum string of length
// keyLen (clamped to MaxKeyLen), with no separator characters, as
// required for safe suffixing into K{v,a,e} semaphore names and
// K-prefixed socket paths.
func NewSegmentKey(keyLen int, exists func(string) bool) (string, error) {
	if keyLen <= 0 || keyLen > MaxKeyLen {
		keyLen = MaxKeyLen
	}
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		k, err := randomKey(keyLen)
		if err != nil {
			return "", fmt.Errorf("shmif: drawing segment key: %w", err)
		}
		if exists == nil || !exists(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("shmif: could not find an unused segment key after %d attempts", maxKeyAttempts)
}

func randomKey(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(out), nil
}

// SemaphoreNames returns the three names derived from a segment key by
// suffixing "v" (video), "a" (audio) and "e" (event), per the
// semaphore-naming contract.
func SemaphoreNames(key string) (video, audio, event string) {
	return key + "v", key + "a", key + "e"
}
