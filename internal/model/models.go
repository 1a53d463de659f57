package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source identifies which photo store a record was observed in.
type Source string

const (
	SourceArchive Source = "archive" // the static local export
	SourceRemote  Source = "remote"  // the remote photo service
)

// Photo is the identity projection shared by both photo sources.
// The ID is derived from source, account and a per-source identity key,
// so it is stable across repeated scans of the same store.
type Photo struct {
	ID            string
	Source        Source
	Account       string
	Filename      string
	CreationTime  time.Time
	FileSize      int64
	ContentHash   string // SHA-256 hex digest; may be empty for remote records
	LastScannedAt time.Time
}

// ArchivePhoto is a photo found in the local archive export.
// Status fields are populated by later phases and mutated only through
// dedicated catalog transitions, never by re-import.
type ArchivePhoto struct {
	Photo
	LocalPath     string // absolute path within the extracted archive
	AlbumName     string // inferred once at import; immutable thereafter
	IsBackedUp    bool   // monotonic false -> true
	CanBeRemoved  bool   // safe to delete from the source export
	RemotePhotoID string // remote-assigned id, known only after post-upload discovery
}

// RemotePhoto is a photo observed in the remote store.
type RemotePhoto struct {
	Photo
	RemotePath       string // folder path on the remote store
	RemoteInternalID string // the remote store's own identifier
}

// Album is the local cache of a remote album.
type Album struct {
	ID            string // UUID
	Account       string
	Name          string // unique per account
	RemoteAlbumID string
	CreatedAt     time.Time
	LastSyncedAt  *time.Time
}

// Membership records a confirmed remote album membership: the catalog's
// belief about remote truth, never a desired or pending state.
type Membership struct {
	AlbumID string
	PhotoID string
	AddedAt time.Time
}

// SyncOperation tracks a CLI invocation that mutated the catalog.
type SyncOperation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "success" or "error"
}

// PhotoID derives the stable catalog identifier for a photo.
// key is the content hash for archive photos and the remote internal id
// for remote photos.
func PhotoID(source Source, account, key string) string {
	h := sha256.Sum256([]byte(string(source) + "\x00" + account + "\x00" + key))
	return hex.EncodeToString(h[:])
}
