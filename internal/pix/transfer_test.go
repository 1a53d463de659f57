package pix_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pixsync/internal/model"
	"pixsync/internal/pix"
)

// seedPending writes a real file under dir and records it in the catalog as
// a pending transfer. seq orders photos by creation time.
func seedPending(t *testing.T, cat pix.Catalog, dir, account, filename, album string, seq int) *model.ArchivePhoto {
	t.Helper()

	path := filepath.Join(dir, filename)
	content := []byte("image-bytes-" + filename)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	hash := fmt.Sprintf("hash-%s", filename)
	p := &model.ArchivePhoto{
		Photo: model.Photo{
			ID:            model.PhotoID(model.SourceArchive, account, hash),
			Source:        model.SourceArchive,
			Account:       account,
			Filename:      filename,
			CreationTime:  time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Hour),
			FileSize:      int64(len(content)),
			ContentHash:   hash,
			LastScannedAt: time.Now(),
		},
		LocalPath: path,
		AlbumName: album,
	}
	if err := cat.UpsertArchivePhoto(p); err != nil {
		t.Fatalf("seeding pending photo: %v", err)
	}
	return p
}

func TestService_Transfer(t *testing.T) {
	t.Run("uploads pending photos and marks them backed up", func(t *testing.T) {
		svc, cat, store := newTestService(t)
		dir := t.TempDir()

		seedPending(t, cat, dir, "alice", "a.jpg", "", 0)
		seedPending(t, cat, dir, "alice", "b.jpg", "", 1)

		stats, err := svc.Transfer(context.Background(), pix.TransferOptions{
			Account: "alice", RootFolder: "photos",
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
		if stats.Synced != 2 || stats.Failed != 0 {
			t.Errorf("stats = %+v, want Synced=2 Failed=0", stats)
		}
		if store.UploadedCount() != 2 {
			t.Errorf("uploaded = %d, want 2", store.UploadedCount())
		}

		pending, _ := cat.ListPendingTransfer("alice", 0)
		if len(pending) != 0 {
			t.Errorf("pending after transfer = %d, want 0", len(pending))
		}
		removable, _ := cat.ListRemovable("alice")
		if len(removable) != 2 {
			t.Errorf("removable after transfer = %d, want 2", len(removable))
		}
	})

	t.Run("a failed upload stays pending and the run continues", func(t *testing.T) {
		svc, cat, store := newTestService(t)
		dir := t.TempDir()

		seedPending(t, cat, dir, "alice", "a.jpg", "", 0)
		bad := seedPending(t, cat, dir, "alice", "b.jpg", "", 1)
		seedPending(t, cat, dir, "alice", "c.jpg", "", 2)

		store.UploadErr = func(filename string) error {
			if filename == "b.jpg" {
				return fmt.Errorf("remote hiccup")
			}
			return nil
		}

		stats, err := svc.Transfer(context.Background(), pix.TransferOptions{
			Account: "alice", RootFolder: "photos",
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
		if stats.Synced != 2 || stats.Failed != 1 {
			t.Errorf("stats = %+v, want Synced=2 Failed=1", stats)
		}

		pending, _ := cat.ListPendingTransfer("alice", 0)
		if len(pending) != 1 || pending[0].ID != bad.ID {
			t.Errorf("pending after transfer = %d, want just the failed photo", len(pending))
		}
	})

	t.Run("missing local files are skipped, not failed", func(t *testing.T) {
		svc, cat, _ := newTestService(t)
		dir := t.TempDir()

		gone := seedPending(t, cat, dir, "alice", "a.jpg", "", 0)
		if err := os.Remove(gone.LocalPath); err != nil {
			t.Fatalf("removing test file: %v", err)
		}

		stats, err := svc.Transfer(context.Background(), pix.TransferOptions{
			Account: "alice", RootFolder: "photos",
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
		if stats.Skipped != 1 || stats.Failed != 0 {
			t.Errorf("stats = %+v, want Skipped=1 Failed=0", stats)
		}
	})

	t.Run("limit processes oldest photos first", func(t *testing.T) {
		svc, cat, store := newTestService(t)
		dir := t.TempDir()

		oldest := seedPending(t, cat, dir, "alice", "a.jpg", "", 0)
		seedPending(t, cat, dir, "alice", "b.jpg", "", 1)

		stats, err := svc.Transfer(context.Background(), pix.TransferOptions{
			Account: "alice", RootFolder: "photos", Limit: 1,
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
		if stats.Synced != 1 {
			t.Errorf("stats.Synced = %d, want 1", stats.Synced)
		}
		if store.UploadedCount() != 1 {
			t.Errorf("uploaded = %d, want 1", store.UploadedCount())
		}

		p, _ := cat.FindArchivePhoto(oldest.ID)
		if !p.IsBackedUp {
			t.Error("oldest photo not backed up, limit did not follow creation order")
		}
	})

	t.Run("dry run uploads nothing and mutates nothing", func(t *testing.T) {
		svc, cat, store := newTestService(t)
		dir := t.TempDir()

		seedPending(t, cat, dir, "alice", "a.jpg", "", 0)

		stats, err := svc.Transfer(context.Background(), pix.TransferOptions{
			Account: "alice", RootFolder: "photos", DryRun: true,
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
		if stats.Synced != 1 {
			t.Errorf("stats.Synced = %d, want 1", stats.Synced)
		}
		if store.UploadedCount() != 0 {
			t.Errorf("uploaded = %d, want 0", store.UploadedCount())
		}
		pending, _ := cat.ListPendingTransfer("alice", 0)
		if len(pending) != 1 {
			t.Errorf("pending after dry run = %d, want 1", len(pending))
		}
	})

	t.Run("organizes uploads into sanitized album subfolders", func(t *testing.T) {
		svc, cat, store := newTestService(t)
		dir := t.TempDir()

		seedPending(t, cat, dir, "alice", "a.jpg", "Summer Trip", 0)

		_, err := svc.Transfer(context.Background(), pix.TransferOptions{
			Account: "alice", RootFolder: "photos", OrganizeByAlbum: true,
		})
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}

		refs, err := store.ListFolderPhotos(context.Background(), "photos/Summer Trip")
		if err != nil {
			t.Fatalf("ListFolderPhotos() error = %v", err)
		}
		if len(refs) != 1 {
			t.Errorf("photos in album folder = %d, want 1", len(refs))
		}
	})
}

func TestSanitizeAlbumName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Summer Trip", "Summer Trip"},
		{"Con:Tag*s", "Con_Tag_s"},
		{`a/b\c`, "a_b_c"},
		{"../../etc", "etc"},
		{"trailing dots...", "trailing dots"},
		{"  padded  ", "padded"},
		{"???", "Unsorted"},
		{"", "Unsorted"},
		{"..", "Unsorted"},
	}

	for _, tc := range cases {
		if got := pix.SanitizeAlbumName(tc.in); got != tc.want {
			t.Errorf("SanitizeAlbumName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
