package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainFingerprint prefixes fingerprint input. The version suffix allows a
// future change of algorithm.
const DomainFingerprint = "outbox/fingerprint/v1"

// Fingerprint identifies a command by name and canonical arguments.
// Two entries with the same fingerprint carry the same request; the queue
// keeps both, the fingerprint only makes the duplication visible.
//
// Format: hex(SHA256(domain || 0x00 || name || 0x00 || canonical(args)))
func Fingerprint(commandName string, args Value) (string, error) {
	canonical, err := MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainFingerprint))
	h.Write([]byte{0x00})
	h.Write([]byte(commandName))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
