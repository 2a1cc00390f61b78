// Package addr validates Ethereum addresses at the API edge: basic shape
// first, then the EIP-55 mixed-case checksum when the input carries one.
package addr

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var addressShape = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValid reports whether s is a plausible Ethereum address. All-lowercase
// and all-uppercase forms carry no checksum information and are accepted;
// mixed-case forms must pass the EIP-55 check.
func IsValid(s string) bool {
	if !addressShape.MatchString(s) {
		return false
	}
	body := s[2:]
	lower := strings.ToLower(body)
	upper := strings.ToUpper(body)
	if body == lower || body == upper {
		return true
	}
	return Checksum(s) == s
}

// Checksum returns the EIP-55 canonical form of an address. The input must
// already match the 0x-40-hex shape.
func Checksum(s string) string {
	body := strings.ToLower(s[2:])
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(body))
	digest := hex.EncodeToString(hasher.Sum(nil))

	out := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}
