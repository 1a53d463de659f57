package pix_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pixsync/internal/model"
	"pixsync/internal/pix"
)

// seedBackedUp records a backed-up archive photo with an album, the starting
// point of the reconciliation backlog. remoteID, when non-empty, skips the
// photo past Phase 1.
func seedBackedUp(t *testing.T, cat pix.Catalog, account, filename, album, remoteID string, seq int) *model.ArchivePhoto {
	t.Helper()

	hash := fmt.Sprintf("hash-%s", filename)
	p := &model.ArchivePhoto{
		Photo: model.Photo{
			ID:            model.PhotoID(model.SourceArchive, account, hash),
			Source:        model.SourceArchive,
			Account:       account,
			Filename:      filename,
			CreationTime:  time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
			FileSize:      100,
			ContentHash:   hash,
			LastScannedAt: time.Now(),
		},
		LocalPath: "/export/" + filename,
		AlbumName: album,
	}
	if err := cat.UpsertArchivePhoto(p); err != nil {
		t.Fatalf("seeding photo: %v", err)
	}
	if err := cat.MarkBackedUp(p.ID); err != nil {
		t.Fatalf("marking backed up: %v", err)
	}
	if remoteID != "" {
		if err := cat.SetRemotePhotoID(p.ID, remoteID); err != nil {
			t.Fatalf("setting remote id: %v", err)
		}
		p.RemotePhotoID = remoteID
	}
	return p
}

func TestService_FixAlbums_Discovery(t *testing.T) {
	t.Run("finds remote ids by unique filename match", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		p := seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "", 0)
		wantID := store.Seed(pix.RemotePhotoRef{Filename: "A.JPG"})

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.IDsFound != 1 {
			t.Errorf("stats.IDsFound = %d, want 1", stats.IDsFound)
		}

		got, _ := cat.FindArchivePhoto(p.ID)
		if got.RemotePhotoID != wantID {
			t.Errorf("remote photo id = %q, want %q", got.RemotePhotoID, wantID)
		}
	})

	t.Run("no remote match is a skip, not an error", func(t *testing.T) {
		svc, cat, _ := newTestService(t)

		seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "", 0)

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.IDsSkipped != 1 || stats.IDErrors != 0 {
			t.Errorf("stats = %+v, want IDsSkipped=1 IDErrors=0", stats)
		}
	})

	t.Run("ambiguous filename matches are never guessed", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		p := seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "", 0)
		store.Seed(pix.RemotePhotoRef{Filename: "a.jpg"})
		store.Seed(pix.RemotePhotoRef{Filename: "a.jpg"})

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.IDsSkipped != 1 {
			t.Errorf("stats.IDsSkipped = %d, want 1", stats.IDsSkipped)
		}

		got, _ := cat.FindArchivePhoto(p.ID)
		if got.RemotePhotoID != "" {
			t.Errorf("remote photo id = %q, want empty", got.RemotePhotoID)
		}
	})

	t.Run("lookup failures are counted and retried next run", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		p := seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "", 0)
		wantID := store.Seed(pix.RemotePhotoRef{Filename: "a.jpg"})

		calls := 0
		store.SearchErr = func(string) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("remote hiccup")
			}
			return nil
		}

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.IDErrors != 1 {
			t.Errorf("stats.IDErrors = %d, want 1", stats.IDErrors)
		}

		// The backlog re-derives from the catalog, so the second run retries.
		stats, err = svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() second run error = %v", err)
		}
		if stats.IDsFound != 1 {
			t.Errorf("second run stats.IDsFound = %d, want 1", stats.IDsFound)
		}
		got, _ := cat.FindArchivePhoto(p.ID)
		if got.RemotePhotoID != wantID {
			t.Errorf("remote photo id = %q, want %q", got.RemotePhotoID, wantID)
		}
	})

	t.Run("photos without an album are not in the backlog", func(t *testing.T) {
		svc, cat, _ := newTestService(t)

		seedBackedUp(t, cat, "alice", "a.jpg", "", "", 0)

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.IDsFound+stats.IDsSkipped+stats.IDErrors != 0 {
			t.Errorf("stats = %+v, want no Phase 1 activity", stats)
		}
	})
}

func TestService_FixAlbums_Memberships(t *testing.T) {
	t.Run("creates the remote album and adds members in chunks", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		for i := 0; i < 12; i++ {
			name := fmt.Sprintf("img-%02d.jpg", i)
			seedBackedUp(t, cat, "alice", name, "Trip", fmt.Sprintf("remote-%02d", i), i)
		}

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{
			Account: "alice", ChunkSize: 5,
		})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.AlbumsCreated != 1 {
			t.Errorf("stats.AlbumsCreated = %d, want 1", stats.AlbumsCreated)
		}
		if stats.MembersAdded != 12 {
			t.Errorf("stats.MembersAdded = %d, want 12", stats.MembersAdded)
		}
		if got := store.AddToAlbumCalls(); got != 3 {
			t.Errorf("AddToAlbum calls = %d, want 3", got)
		}

		album, err := cat.FindAlbum("alice", "Trip")
		if err != nil {
			t.Fatalf("FindAlbum() error = %v", err)
		}
		if album == nil || album.RemoteAlbumID == "" {
			t.Fatalf("album = %+v, want record with remote id", album)
		}
		if n, _ := cat.CountMemberships(album.ID); n != 12 {
			t.Errorf("recorded memberships = %d, want 12", n)
		}
		if album.LastSyncedAt == nil {
			t.Error("album.LastSyncedAt = nil, want set")
		}
	})

	t.Run("a failed chunk abandons the album's remaining chunks", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		for i := 0; i < 12; i++ {
			name := fmt.Sprintf("img-%02d.jpg", i)
			seedBackedUp(t, cat, "alice", name, "Trip", fmt.Sprintf("remote-%02d", i), i)
		}

		store.AddToAlbumErr = func(call int) error {
			if call == 2 {
				return fmt.Errorf("remote hiccup")
			}
			return nil
		}

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{
			Account: "alice", ChunkSize: 5,
		})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		// First chunk of 5 lands; the second chunk fails, leaving it and the
		// final chunk (5 + 2 photos) in the backlog.
		if stats.MembersAdded != 5 {
			t.Errorf("stats.MembersAdded = %d, want 5", stats.MembersAdded)
		}
		if stats.MemberErrors != 7 {
			t.Errorf("stats.MemberErrors = %d, want 7", stats.MemberErrors)
		}

		album, _ := cat.FindAlbum("alice", "Trip")
		if n, _ := cat.CountMemberships(album.ID); n != 5 {
			t.Errorf("recorded memberships = %d, want 5", n)
		}

		// Next run picks up exactly the abandoned photos.
		store.AddToAlbumErr = nil
		stats, err = svc.FixAlbums(context.Background(), pix.ReconcileOptions{
			Account: "alice", ChunkSize: 5,
		})
		if err != nil {
			t.Fatalf("FixAlbums() second run error = %v", err)
		}
		if stats.MembersAdded != 7 {
			t.Errorf("second run stats.MembersAdded = %d, want 7", stats.MembersAdded)
		}
		if n, _ := cat.CountMemberships(album.ID); n != 12 {
			t.Errorf("recorded memberships after retry = %d, want 12", n)
		}
	})

	t.Run("an existing remote album is reused, not recreated", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		wantID := store.SeedAlbum("Trip")
		seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "remote-1", 0)

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.AlbumsCreated != 0 {
			t.Errorf("stats.AlbumsCreated = %d, want 0", stats.AlbumsCreated)
		}

		album, _ := cat.FindAlbum("alice", "Trip")
		if album.RemoteAlbumID != wantID {
			t.Errorf("remote album id = %q, want %q", album.RemoteAlbumID, wantID)
		}
	})

	t.Run("running twice does no extra work", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "remote-1", 0)

		if _, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"}); err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		callsAfterFirst := store.AddToAlbumCalls()

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() second run error = %v", err)
		}
		if stats.MembersAdded != 0 {
			t.Errorf("second run stats.MembersAdded = %d, want 0", stats.MembersAdded)
		}
		if got := store.AddToAlbumCalls(); got != callsAfterFirst {
			t.Errorf("AddToAlbum calls after second run = %d, want %d", got, callsAfterFirst)
		}
	})

	t.Run("dry run counts the work without doing it", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "remote-1", 0)

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{
			Account: "alice", DryRun: true,
		})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.MembersAdded != 1 || stats.AlbumsCreated != 1 {
			t.Errorf("stats = %+v, want MembersAdded=1 AlbumsCreated=1", stats)
		}
		if store.AddToAlbumCalls() != 0 {
			t.Errorf("AddToAlbum calls = %d, want 0", store.AddToAlbumCalls())
		}
		if album, _ := cat.FindAlbum("alice", "Trip"); album != nil {
			t.Errorf("album record after dry run = %+v, want none", album)
		}
	})

	t.Run("photos in distinct albums land in their own albums", func(t *testing.T) {
		svc, cat, store := newTestService(t)

		seedBackedUp(t, cat, "alice", "a.jpg", "Trip", "remote-1", 0)
		seedBackedUp(t, cat, "alice", "b.jpg", "Birthday", "remote-2", 1)

		stats, err := svc.FixAlbums(context.Background(), pix.ReconcileOptions{Account: "alice"})
		if err != nil {
			t.Fatalf("FixAlbums() error = %v", err)
		}
		if stats.AlbumsCreated != 2 || stats.MembersAdded != 2 {
			t.Errorf("stats = %+v, want AlbumsCreated=2 MembersAdded=2", stats)
		}

		for name, wantMember := range map[string]string{"Trip": "remote-1", "Birthday": "remote-2"} {
			album, _ := cat.FindAlbum("alice", name)
			if album == nil {
				t.Fatalf("album %s missing", name)
			}
			members := store.Members(album.RemoteAlbumID)
			if len(members) != 1 || members[0] != wantMember {
				t.Errorf("members of %s = %v, want [%s]", name, members, wantMember)
			}
		}
	})
}
