// Package draftkey maps an editing context to the identifier its draft is stored under.
//
// Two disjoint namespaces exist:
//   - autosave keys, "auto_" followed by 32 hex digits, derived deterministically
//     from (sport, film submission reference);
//   - named keys, "named_" followed by a random UUID, minted once on "save as".
//
// The prefixes make the namespaces disjoint by construction, so a minted key
// can never equal a derived one.
package draftkey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Key prefixes. They are part of the stored identifier and must never change.
const (
	AutosavePrefix = "auto_"
	NamedPrefix    = "named_"

	// digestBytes is the number of SHA-256 bytes kept in an autosave key (128 bits).
	digestBytes = 16
)

// Mode selects which key is authoritative for editing.
type Mode string

// Editing modes.
const (
	ModeAutosave Mode = "autosave"
	ModeNamed    Mode = "named"
)

// Identity is the active draft key plus the mode it was obtained in.
type Identity struct {
	Key  string `json:"key"`
	Mode Mode   `json:"mode"`
}

// Autosave returns the autosave identity for an editing context.
func Autosave(sport, filmSubmissionReference string) Identity {
	return Identity{Key: DeriveAutosaveKey(sport, filmSubmissionReference), Mode: ModeAutosave}
}

// Named wraps an existing named key.
func Named(key string) Identity {
	return Identity{Key: key, Mode: ModeNamed}
}

// DeriveAutosaveKey returns the stable autosave key for (sport, ref). Each
// component is length-prefixed before hashing so ("ab","c") and ("a","bc")
// never share an input.
func DeriveAutosaveKey(sport, filmSubmissionReference string) string {
	h := sha256.New()
	writeField(h, strings.TrimSpace(sport))
	writeField(h, strings.TrimSpace(filmSubmissionReference))
	sum := h.Sum(nil)
	return AutosavePrefix + hex.EncodeToString(sum[:digestBytes])
}

func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(s))
}

// MintNamedKey returns a fresh random named key.
func MintNamedKey() string {
	return NamedPrefix + uuid.NewString()
}

// IsAutosave reports whether key is a well formed autosave key.
func IsAutosave(key string) bool {
	rest, ok := strings.CutPrefix(key, AutosavePrefix)
	if !ok || len(rest) != hex.EncodedLen(digestBytes) {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}

// IsNamed reports whether key is a well formed named key.
func IsNamed(key string) bool {
	rest, ok := strings.CutPrefix(key, NamedPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

// Parse classifies key into its identity.
func Parse(key string) (Identity, error) {
	switch {
	case IsAutosave(key):
		return Identity{Key: key, Mode: ModeAutosave}, nil
	case IsNamed(key):
		return Identity{Key: key, Mode: ModeNamed}, nil
	default:
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
}
