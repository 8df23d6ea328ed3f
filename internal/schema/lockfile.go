package schema

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// CurrentLockfileVersion is the lockfile format written by this release.
const CurrentLockfileVersion = 1

// LockEntry pins one resolved server for reproducible re-resolution.
type LockEntry struct {
	// Resolved is the canonical registry name (namespace/servername).
	Resolved string `json:"resolved"`

	// Version is the exact pinned version.
	Version string `json:"version"`

	// RegistryMetadata is the full registry snapshot at resolution time.
	RegistryMetadata ServerDetail `json:"registryMetadata"`

	// Integrity is a sha256 digest of the registry snapshot.
	Integrity string `json:"integrity,omitempty"`

	Timestamp string `json:"timestamp"`
}

// Lockfile pins exact versions and registry snapshots, the
// package-lock.json equivalent. Not consulted for runtime execution, only
// for install-from-manifest and integrity verification.
type Lockfile struct {
	LockfileVersion int                  `json:"lockfileVersion"`
	Servers         map[string]LockEntry `json:"servers"`
}

// NewLockfile creates an empty lockfile at the current format version.
func NewLockfile() Lockfile {
	return Lockfile{
		LockfileVersion: CurrentLockfileVersion,
		Servers:         map[string]LockEntry{},
	}
}

// NewLockEntry builds a lock entry for a resolved registry snapshot, with the
// integrity digest and timestamp filled in.
func NewLockEntry(detail ServerDetail) LockEntry {
	return LockEntry{
		Resolved:         detail.Name,
		Version:          detail.Version,
		RegistryMetadata: detail,
		Integrity:        IntegrityDigest(detail),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}

// Pin records a lock entry under the server's local name.
func (l *Lockfile) Pin(name string, entry LockEntry) {
	if l.Servers == nil {
		l.Servers = map[string]LockEntry{}
	}
	l.Servers[name] = entry
}

// Unpin removes the lock entry for a server, if present.
func (l *Lockfile) Unpin(name string) {
	delete(l.Servers, name)
}

// Verify recomputes the integrity digest for an entry and reports whether it
// matches the recorded one. Entries without a recorded digest verify as true.
func (e *LockEntry) Verify() bool {
	if e.Integrity == "" {
		return true
	}

	return e.Integrity == IntegrityDigest(e.RegistryMetadata)
}

// IntegrityDigest computes the sha256 digest of a registry snapshot's
// canonical JSON encoding.
func IntegrityDigest(detail ServerDetail) string {
	data, err := json.Marshal(detail)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("sha256-%x", sha256.Sum256(data))
}

// UnmarshalJSON decodes a lockfile and normalizes an absent servers map.
func (l *Lockfile) UnmarshalJSON(data []byte) error {
	type alias Lockfile
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*l = Lockfile(a)
	if l.Servers == nil {
		l.Servers = map[string]LockEntry{}
	}

	return nil
}
