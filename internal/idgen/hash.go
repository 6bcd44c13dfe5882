package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of specified length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// GenerateTraceID produces a stable, short, content-addressed id for a
// slice's trace: the owning entity, the hypernode state it was spawned
// in, and a monotonic spawn order all feed the hash, so replaying the
// same event stream through the same automaton reproduces identical
// trace ids (useful for correlating a daemon's own logs with an external
// JetStream consumer's view of the same slice). nonce disambiguates the
// rare case where every other input collides (an entity re-entering the
// same state at the same instant in a synthetic/replayed stream).
func GenerateTraceID(entityID, stateID string, spawnedAt time.Time, nonce int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", entityID, stateID, spawnedAt.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))
	return EncodeBase36(hash[:5], 8)
}
