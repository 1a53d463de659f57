package pix

import (
	"time"

	"pixsync/internal/model"
)

// Catalog provides an interface for the durable photo/album store.
// It is the system of record for transfer and reconciliation state.
//
// Upserts write the identity portion of a record once and refresh only
// last_scanned_at on conflict. Status fields (is_backed_up, remote_photo_id,
// memberships) are mutated exclusively through the dedicated transition
// methods below, so a re-scan can never clobber what a later phase recorded.
type Catalog interface {
	// Photo upserts and lookups

	// UpsertArchivePhoto inserts an archive photo or, if the id already
	// exists, refreshes its last-scanned timestamp. Idempotent.
	UpsertArchivePhoto(p *model.ArchivePhoto) error

	// UpsertRemotePhoto inserts a remote photo or refreshes its
	// last-scanned timestamp and remote path. Idempotent.
	UpsertRemotePhoto(p *model.RemotePhoto) error

	// FindArchivePhoto returns an archive photo by id, or nil if absent.
	FindArchivePhoto(id string) (*model.ArchivePhoto, error)

	// Queries

	// ListRemotePhotos returns all remote photos for an account.
	ListRemotePhotos(account string) ([]*model.RemotePhoto, error)

	// ListArchivePhotos returns all archive photos for an account.
	ListArchivePhotos(account string) ([]*model.ArchivePhoto, error)

	// ListPendingTransfer returns the account's archive photos that are not
	// yet backed up, ordered by creation time ascending. limit <= 0 means
	// no limit. The ordering is stable so repeated limited runs resume
	// where the previous one stopped.
	ListPendingTransfer(account string, limit int) ([]*model.ArchivePhoto, error)

	// ListNeedingRemoteID returns backed-up archive photos that have an
	// album but no remote photo id yet.
	ListNeedingRemoteID(account string, limit int) ([]*model.ArchivePhoto, error)

	// ListNeedingMembership returns archive photos that have both a remote
	// photo id and an album but no recorded membership.
	ListNeedingMembership(account string, limit int) ([]*model.ArchivePhoto, error)

	// ListRemovable returns archive photos that are safe to delete from
	// the source export.
	ListRemovable(account string) ([]*model.ArchivePhoto, error)

	// Status transitions

	// MarkBackedUp sets is_backed_up and can_be_removed. Monotonic: a
	// backed-up photo never transitions back.
	MarkBackedUp(photoID string) error

	// MarkRemovable sets can_be_removed without touching is_backed_up.
	MarkRemovable(photoID string) error

	// SetRemotePhotoID records the remote-assigned identifier discovered
	// for a photo. Call only after a confirmed existence check.
	SetRemotePhotoID(photoID, remoteID string) error

	// Albums

	// FindAlbum returns an album by account and name, or nil if absent.
	FindAlbum(account, name string) (*model.Album, error)

	// CreateAlbum inserts a new album record.
	CreateAlbum(album *model.Album) error

	// SetAlbumRemoteID records the remote id for an album.
	SetAlbumRemoteID(albumID, remoteAlbumID string) error

	// TouchAlbumSynced updates the album's last-synced timestamp.
	TouchAlbumSynced(albumID string, at time.Time) error

	// ListAlbums returns all albums for an account, ordered by name.
	ListAlbums(account string) ([]*model.Album, error)

	// RecordMembership records a confirmed membership. Recording the same
	// pair twice is a no-op.
	RecordMembership(albumID, photoID string, addedAt time.Time) error

	// CountMemberships returns the number of recorded members of an album.
	CountMemberships(albumID string) (int, error)

	// Sync operation tracking

	CreateSyncOperation(operation, parameters string) (*model.SyncOperation, error)
	FinishSyncOperation(id int64, status string) error
	ListSyncOperations(limit int) ([]*model.SyncOperation, error)

	// Close releases the catalog and its single-writer lock.
	Close() error
}
