package model

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Address is an opaque account identifier. Governance tokens across the
// supported protocols are all EVM-style, but the engine treats addresses as
// plain byte strings so a future non-EVM adapter never needs a model change.
type Address [20]byte

// ParseAddress decodes a 0x-prefixed or bare hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	trimmed := s
	if len(trimmed) >= 2 && trimmed[0:2] == "0x" {
		trimmed = trimmed[2:]
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("parse address %q: want %d bytes, got %d", s, len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// String renders the address as a 0x-prefixed lowercase hex string.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Less orders addresses lexicographically by their raw bytes, the
// deterministic tie-break spec.md requires for rank assignment and block
// ordering.
func (a Address) Less(b Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalJSON renders the address as its hex string form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses the address from its hex string form.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
