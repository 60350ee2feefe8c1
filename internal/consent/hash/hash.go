// Package hash stamps consent artifacts. Digest gives a content address over
// a canonical serialization; NewAgreementID gives the opaque version token
// that identifies an artifact independently of its content.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Digest returns the hex SHA-256 of v's canonical JSON form. The document is
// round-tripped through untyped maps before the final marshal: encoding/json
// emits map keys in lexicographic order at every nesting level, which gives
// the deterministic total ordering the chain reference depends on. Two
// structurally equal documents digest identically regardless of how they
// were constructed.
func Digest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("normalize document: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("canonicalize document: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// NewAgreementID returns a globally unique opaque token. It is an
// identifier, not a cryptographic commitment; integrity lives in the digest.
func NewAgreementID() string {
	return uuid.NewString()
}
