package remote

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"pixsync/internal/pix"
)

// MemoryStore is an in-memory implementation of the RemoteStore interface.
// It enforces the same session discipline as the real client and supports
// injectable failures, making it useful for testing. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	loggedIn bool
	nextID   int

	folders map[string]bool
	photos  []pix.RemotePhotoRef // uploaded or seeded photos
	albums  []pix.RemoteAlbum
	members map[string][]string // album id -> photo ids

	// Failure injection hooks. When a hook returns a non-nil error the
	// corresponding call fails without mutating state.
	UploadErr     func(filename string) error
	SearchErr     func(filename string) error
	AddToAlbumErr func(call int) error
	addCalls      int
}

// NewMemoryStore creates an empty in-memory remote store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		folders: make(map[string]bool),
		members: make(map[string][]string),
	}
}

// Seed adds a photo to the store as if it had been uploaded and indexed.
// Returns the assigned internal id.
func (m *MemoryStore) Seed(ref pix.RemotePhotoRef) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref.ID == "" {
		m.nextID++
		ref.ID = fmt.Sprintf("remote-%d", m.nextID)
	}
	m.photos = append(m.photos, ref)
	return ref.ID
}

// SeedAlbum adds an album. Returns the assigned id.
func (m *MemoryStore) SeedAlbum(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("album-%d", m.nextID)
	m.albums = append(m.albums, pix.RemoteAlbum{ID: id, Name: name})
	return id
}

func (m *MemoryStore) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if username == "" || password == "" {
		return fmt.Errorf("invalid credentials")
	}
	m.loggedIn = true
	return nil
}

func (m *MemoryStore) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loggedIn = false
	return nil
}

func (m *MemoryStore) requireSession() error {
	if !m.loggedIn {
		return pix.ErrNotAuthenticated
	}
	return nil
}

func (m *MemoryStore) EnsureFolder(ctx context.Context, folderPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession(); err != nil {
		return err
	}
	m.folders[folderPath] = true
	return nil
}

func (m *MemoryStore) Upload(ctx context.Context, folderPath, filename string, r io.Reader, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession(); err != nil {
		return err
	}
	if m.UploadErr != nil {
		if err := m.UploadErr(filename); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.nextID++
	m.photos = append(m.photos, pix.RemotePhotoRef{
		ID:         fmt.Sprintf("remote-%d", m.nextID),
		Filename:   filename,
		FolderPath: folderPath,
		Size:       size,
	})
	return nil
}

func (m *MemoryStore) ListAlbums(ctx context.Context) ([]pix.RemoteAlbum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession(); err != nil {
		return nil, err
	}
	out := make([]pix.RemoteAlbum, len(m.albums))
	copy(out, m.albums)
	return out, nil
}

func (m *MemoryStore) CreateAlbum(ctx context.Context, name string) (*pix.RemoteAlbum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession(); err != nil {
		return nil, err
	}
	for _, a := range m.albums {
		if a.Name == name {
			return nil, pix.ErrAlbumExists
		}
	}
	m.nextID++
	album := pix.RemoteAlbum{ID: fmt.Sprintf("album-%d", m.nextID), Name: name}
	m.albums = append(m.albums, album)
	return &album, nil
}

func (m *MemoryStore) SearchByFilename(ctx context.Context, filename string) ([]pix.RemotePhotoRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession(); err != nil {
		return nil, err
	}
	if m.SearchErr != nil {
		if err := m.SearchErr(filename); err != nil {
			return nil, err
		}
	}

	var out []pix.RemotePhotoRef
	for _, p := range m.photos {
		if strings.EqualFold(p.Filename, filename) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, pix.ErrNotFound
	}
	return out, nil
}

func (m *MemoryStore) AddToAlbum(ctx context.Context, albumID string, photoIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession(); err != nil {
		return err
	}

	m.addCalls++
	if m.AddToAlbumErr != nil {
		if err := m.AddToAlbumErr(m.addCalls); err != nil {
			return err
		}
	}

	found := false
	for _, a := range m.albums {
		if a.ID == albumID {
			found = true
			break
		}
	}
	if !found {
		return pix.ErrNotFound
	}

	m.members[albumID] = append(m.members[albumID], photoIDs...)
	return nil
}

func (m *MemoryStore) ListFolderPhotos(ctx context.Context, folderPath string) ([]pix.RemotePhotoRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSession(); err != nil {
		return nil, err
	}
	var out []pix.RemotePhotoRef
	for _, p := range m.photos {
		if p.FolderPath == folderPath || strings.HasPrefix(p.FolderPath, folderPath+"/") {
			out = append(out, p)
		}
	}
	return out, nil
}

// AddToAlbumCalls returns how many AddToAlbum calls were made.
func (m *MemoryStore) AddToAlbumCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCalls
}

// Members returns the photo ids added to an album.
func (m *MemoryStore) Members(albumID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.members[albumID]))
	copy(out, m.members[albumID])
	return out
}

// UploadedCount returns the number of photos uploaded or seeded.
func (m *MemoryStore) UploadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.photos)
}

// Compile-time check that MemoryStore implements pix.RemoteStore.
var _ pix.RemoteStore = (*MemoryStore)(nil)
