package pix

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors shared across RemoteStore implementations.
var (
	// ErrNotFound marks an expected miss (filename search, folder listing).
	// Callers treat it as a skip, never as a failure.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated is returned when a call is made without a live
	// session. This is a programming error in the calling code, not a
	// retryable condition.
	ErrNotAuthenticated = errors.New("no active session")

	// ErrAlbumExists is returned by CreateAlbum when an album with the
	// same name already exists on the remote store.
	ErrAlbumExists = errors.New("album already exists")
)

// RemoteAlbum is an album as reported by the remote store.
type RemoteAlbum struct {
	ID   string
	Name string
}

// RemotePhotoRef is a photo as reported by the remote store.
type RemotePhotoRef struct {
	ID          string // the store's internal identifier
	Filename    string
	FolderPath  string
	Size        int64
	ContentHash string // digest if the store reports one, else empty
	TakenAt     string // ISO-8601 capture time if reported
}

// RemoteStore is the client for the remote photo service. Implementations
// hold a session token obtained by Login; every other call requires one.
// A client is constructed per command invocation and closed with Logout,
// never shared as a process-wide singleton.
type RemoteStore interface {
	// Login authenticates and stores the session token on the client.
	Login(ctx context.Context, username, password string) error

	// Logout invalidates the session. Safe to call without a session.
	Logout(ctx context.Context) error

	// EnsureFolder creates the folder path if it does not exist.
	// Idempotent.
	EnsureFolder(ctx context.Context, folderPath string) error

	// Upload stores size bytes from r as folderPath/filename.
	Upload(ctx context.Context, folderPath, filename string, r io.Reader, size int64) error

	// ListAlbums returns all albums, paginating internally.
	ListAlbums(ctx context.Context) ([]RemoteAlbum, error)

	// CreateAlbum creates an album by name. Returns ErrAlbumExists if the
	// name is already taken.
	CreateAlbum(ctx context.Context, name string) (*RemoteAlbum, error)

	// SearchByFilename returns photos whose filename matches, up to the
	// store's bounded result window. Returns ErrNotFound on an empty result.
	SearchByFilename(ctx context.Context, filename string) ([]RemotePhotoRef, error)

	// AddToAlbum adds photo identifiers to an album in a single call.
	// The call is atomic on the remote side: either every id is added or
	// none are.
	AddToAlbum(ctx context.Context, albumID string, photoIDs []string) error

	// ListFolderPhotos returns the photos in a folder, paginating internally.
	ListFolderPhotos(ctx context.Context, folderPath string) ([]RemotePhotoRef, error)
}
