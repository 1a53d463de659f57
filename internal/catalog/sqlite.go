package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pixsync/internal/catalog/migrations"
	"pixsync/internal/model"
	"pixsync/internal/pix"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Catalog implements the pix.Catalog interface using SQLite.
type Catalog struct {
	db   *sql.DB
	lock *Lock
	path string
}

// NewCatalog creates a new SQLite catalog connection.
// path can be a file path or ":memory:" for an in-memory catalog.
func NewCatalog(path string) (*Catalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &Catalog{db: db, path: path}, nil
}

// NewCatalogFromDB wraps an existing database connection. The caller is
// responsible for ensuring the connection is properly configured.
func NewCatalogFromDB(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// OpenConnection opens and configures a SQLite connection with the pragmas
// the catalog relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Photo upserts

const archivePhotoColumns = `p.id, p.account, p.filename, p.creation_time, p.file_size,
	p.content_hash, p.last_scanned_at, a.local_path, a.album_name, a.is_backed_up,
	a.can_be_removed, a.remote_photo_id`

// UpsertArchivePhoto inserts an archive photo. If the id already exists only
// last_scanned_at is refreshed: identity fields are written once and status
// fields belong to the transition methods, so a re-scan can never clobber
// what a later phase recorded.
func (c *Catalog) UpsertArchivePhoto(p *model.ArchivePhoto) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO photos (id, source, account, filename, creation_time, file_size, content_hash, last_scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET last_scanned_at = excluded.last_scanned_at`,
		p.ID, model.SourceArchive, p.Account, p.Filename, p.CreationTime, p.FileSize, p.ContentHash, p.LastScannedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting photo: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO archive_photos (photo_id, local_path, album_name, is_backed_up, can_be_removed, remote_photo_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (photo_id) DO NOTHING`,
		p.ID, p.LocalPath, p.AlbumName, p.IsBackedUp, p.CanBeRemoved, p.RemotePhotoID,
	)
	if err != nil {
		return fmt.Errorf("upserting archive photo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpsertRemotePhoto inserts a remote photo. On conflict the scan timestamp
// and remote path are refreshed; the identity fields stay as inserted.
func (c *Catalog) UpsertRemotePhoto(p *model.RemotePhoto) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO photos (id, source, account, filename, creation_time, file_size, content_hash, last_scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET last_scanned_at = excluded.last_scanned_at`,
		p.ID, model.SourceRemote, p.Account, p.Filename, p.CreationTime, p.FileSize, p.ContentHash, p.LastScannedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting photo: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO remote_photos (photo_id, remote_path, remote_internal_id)
		 VALUES (?, ?, ?)
		 ON CONFLICT (photo_id) DO UPDATE SET remote_path = excluded.remote_path`,
		p.ID, p.RemotePath, p.RemoteInternalID,
	)
	if err != nil {
		return fmt.Errorf("upserting remote photo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FindArchivePhoto returns an archive photo by id, or nil if absent.
func (c *Catalog) FindArchivePhoto(id string) (*model.ArchivePhoto, error) {
	row := c.db.QueryRow(
		`SELECT `+archivePhotoColumns+`
		 FROM photos p JOIN archive_photos a ON a.photo_id = p.id
		 WHERE p.id = ?`, id,
	)
	p, err := scanArchivePhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("finding archive photo: %w", err)
	}
	return p, nil
}

// Queries

func (c *Catalog) ListRemotePhotos(account string) ([]*model.RemotePhoto, error) {
	rows, err := c.db.Query(
		`SELECT p.id, p.account, p.filename, p.creation_time, p.file_size, p.content_hash,
		        p.last_scanned_at, r.remote_path, r.remote_internal_id
		 FROM photos p JOIN remote_photos r ON r.photo_id = p.id
		 WHERE p.account = ?
		 ORDER BY p.creation_time ASC`, account,
	)
	if err != nil {
		return nil, fmt.Errorf("listing remote photos: %w", err)
	}
	defer rows.Close()

	var result []*model.RemotePhoto
	for rows.Next() {
		p := &model.RemotePhoto{Photo: model.Photo{Source: model.SourceRemote}}
		if err := rows.Scan(&p.ID, &p.Account, &p.Filename, &p.CreationTime, &p.FileSize,
			&p.ContentHash, &p.LastScannedAt, &p.RemotePath, &p.RemoteInternalID); err != nil {
			return nil, fmt.Errorf("scanning remote photo: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (c *Catalog) ListArchivePhotos(account string) ([]*model.ArchivePhoto, error) {
	return c.queryArchivePhotos(
		`WHERE p.account = ? ORDER BY p.creation_time ASC`, account)
}

func (c *Catalog) ListPendingTransfer(account string, limit int) ([]*model.ArchivePhoto, error) {
	if limit > 0 {
		return c.queryArchivePhotos(
			`WHERE p.account = ? AND a.is_backed_up = FALSE
			 ORDER BY p.creation_time ASC LIMIT ?`, account, limit)
	}
	return c.queryArchivePhotos(
		`WHERE p.account = ? AND a.is_backed_up = FALSE
		 ORDER BY p.creation_time ASC`, account)
}

func (c *Catalog) ListNeedingRemoteID(account string, limit int) ([]*model.ArchivePhoto, error) {
	where := `WHERE p.account = ? AND a.is_backed_up = TRUE
		 AND a.album_name != '' AND a.remote_photo_id = ''
		 ORDER BY p.creation_time ASC`
	if limit > 0 {
		return c.queryArchivePhotos(where+` LIMIT ?`, account, limit)
	}
	return c.queryArchivePhotos(where, account)
}

func (c *Catalog) ListNeedingMembership(account string, limit int) ([]*model.ArchivePhoto, error) {
	where := `WHERE p.account = ? AND a.remote_photo_id != '' AND a.album_name != ''
		 AND NOT EXISTS (
		     SELECT 1 FROM album_memberships m
		     JOIN albums al ON al.id = m.album_id
		     WHERE m.photo_id = p.id AND al.account = p.account AND al.name = a.album_name
		 )
		 ORDER BY a.album_name ASC, p.creation_time ASC`
	if limit > 0 {
		return c.queryArchivePhotos(where+` LIMIT ?`, account, limit)
	}
	return c.queryArchivePhotos(where, account)
}

func (c *Catalog) ListRemovable(account string) ([]*model.ArchivePhoto, error) {
	return c.queryArchivePhotos(
		`WHERE p.account = ? AND a.can_be_removed = TRUE
		 ORDER BY p.creation_time ASC`, account)
}

func (c *Catalog) queryArchivePhotos(where string, args ...any) ([]*model.ArchivePhoto, error) {
	rows, err := c.db.Query(
		`SELECT `+archivePhotoColumns+`
		 FROM photos p JOIN archive_photos a ON a.photo_id = p.id `+where, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying archive photos: %w", err)
	}
	defer rows.Close()

	var result []*model.ArchivePhoto
	for rows.Next() {
		p, err := scanArchivePhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning archive photo: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArchivePhoto(row rowScanner) (*model.ArchivePhoto, error) {
	p := &model.ArchivePhoto{Photo: model.Photo{Source: model.SourceArchive}}
	err := row.Scan(&p.ID, &p.Account, &p.Filename, &p.CreationTime, &p.FileSize,
		&p.ContentHash, &p.LastScannedAt, &p.LocalPath, &p.AlbumName, &p.IsBackedUp,
		&p.CanBeRemoved, &p.RemotePhotoID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Status transitions

// MarkBackedUp sets is_backed_up and can_be_removed. The flag never
// transitions back to false.
func (c *Catalog) MarkBackedUp(photoID string) error {
	res, err := c.db.Exec(
		`UPDATE archive_photos SET is_backed_up = TRUE, can_be_removed = TRUE WHERE photo_id = ?`,
		photoID,
	)
	if err != nil {
		return fmt.Errorf("marking backed up: %w", err)
	}
	return requireRow(res, photoID)
}

func (c *Catalog) MarkRemovable(photoID string) error {
	res, err := c.db.Exec(
		`UPDATE archive_photos SET can_be_removed = TRUE WHERE photo_id = ?`,
		photoID,
	)
	if err != nil {
		return fmt.Errorf("marking removable: %w", err)
	}
	return requireRow(res, photoID)
}

func (c *Catalog) SetRemotePhotoID(photoID, remoteID string) error {
	res, err := c.db.Exec(
		`UPDATE archive_photos SET remote_photo_id = ? WHERE photo_id = ?`,
		remoteID, photoID,
	)
	if err != nil {
		return fmt.Errorf("setting remote photo id: %w", err)
	}
	return requireRow(res, photoID)
}

// requireRow turns a zero-row update into an error: status transitions must
// target an existing record.
func requireRow(res sql.Result, photoID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no archive photo with id %s", photoID)
	}
	return nil
}

// Albums

func (c *Catalog) FindAlbum(account, name string) (*model.Album, error) {
	row := c.db.QueryRow(
		`SELECT id, account, name, remote_album_id, created_at, last_synced_at
		 FROM albums WHERE account = ? AND name = ?`, account, name,
	)
	album, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("finding album: %w", err)
	}
	return album, nil
}

func (c *Catalog) CreateAlbum(album *model.Album) error {
	_, err := c.db.Exec(
		`INSERT INTO albums (id, account, name, remote_album_id, created_at, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		album.ID, album.Account, album.Name, album.RemoteAlbumID, album.CreatedAt, album.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("creating album: %w", err)
	}
	return nil
}

func (c *Catalog) SetAlbumRemoteID(albumID, remoteAlbumID string) error {
	_, err := c.db.Exec(
		`UPDATE albums SET remote_album_id = ? WHERE id = ?`, remoteAlbumID, albumID,
	)
	if err != nil {
		return fmt.Errorf("setting remote album id: %w", err)
	}
	return nil
}

func (c *Catalog) TouchAlbumSynced(albumID string, at time.Time) error {
	_, err := c.db.Exec(
		`UPDATE albums SET last_synced_at = ? WHERE id = ?`, at, albumID,
	)
	if err != nil {
		return fmt.Errorf("updating album sync time: %w", err)
	}
	return nil
}

func (c *Catalog) ListAlbums(account string) ([]*model.Album, error) {
	rows, err := c.db.Query(
		`SELECT id, account, name, remote_album_id, created_at, last_synced_at
		 FROM albums WHERE account = ? ORDER BY name ASC`, account,
	)
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	defer rows.Close()

	var result []*model.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning album: %w", err)
		}
		result = append(result, album)
	}
	return result, rows.Err()
}

func scanAlbum(row rowScanner) (*model.Album, error) {
	album := &model.Album{}
	var syncedAt sql.NullTime
	err := row.Scan(&album.ID, &album.Account, &album.Name, &album.RemoteAlbumID,
		&album.CreatedAt, &syncedAt)
	if err != nil {
		return nil, err
	}
	if syncedAt.Valid {
		album.LastSyncedAt = &syncedAt.Time
	}
	return album, nil
}

// RecordMembership records a confirmed membership. INSERT OR IGNORE makes
// re-recording a pair a no-op.
func (c *Catalog) RecordMembership(albumID, photoID string, addedAt time.Time) error {
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO album_memberships (album_id, photo_id, added_at) VALUES (?, ?, ?)`,
		albumID, photoID, addedAt,
	)
	if err != nil {
		return fmt.Errorf("recording membership: %w", err)
	}
	return nil
}

func (c *Catalog) CountMemberships(albumID string) (int, error) {
	var n int
	err := c.db.QueryRow(
		`SELECT COUNT(*) FROM album_memberships WHERE album_id = ?`, albumID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting memberships: %w", err)
	}
	return n, nil
}

// Sync operation tracking

func (c *Catalog) CreateSyncOperation(operation, parameters string) (*model.SyncOperation, error) {
	op := &model.SyncOperation{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  time.Now(),
	}
	res, err := c.db.Exec(
		`INSERT INTO sync_operations (operation, parameters, started_at, status) VALUES (?, ?, ?, '')`,
		op.Operation, op.Parameters, op.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating sync operation: %w", err)
	}
	op.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return op, nil
}

func (c *Catalog) FinishSyncOperation(id int64, status string) error {
	_, err := c.db.Exec(
		`UPDATE sync_operations SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing sync operation: %w", err)
	}
	return nil
}

func (c *Catalog) ListSyncOperations(limit int) ([]*model.SyncOperation, error) {
	rows, err := c.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM sync_operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	defer rows.Close()

	var result []*model.SyncOperation
	for rows.Next() {
		op := &model.SyncOperation{}
		var finishedAt sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt,
			&finishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning sync operation: %w", err)
		}
		if finishedAt.Valid {
			op.FinishedAt = &finishedAt.Time
		}
		result = append(result, op)
	}
	return result, rows.Err()
}

// Path returns the catalog file path (or ":memory:").
func (c *Catalog) Path() string {
	return c.path
}

// CheckMigrations verifies the catalog schema is up-to-date.
func (c *Catalog) CheckMigrations() error {
	return migrations.CheckStatus(c.db)
}

// Close closes the catalog connection and releases the single-writer lock.
func (c *Catalog) Close() error {
	var firstErr error
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			firstErr = err
		}
	}
	if c.lock != nil {
		if err := c.lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Compile-time check that Catalog implements the pix.Catalog interface.
var _ pix.Catalog = (*Catalog)(nil)
