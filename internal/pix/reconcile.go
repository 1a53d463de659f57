package pix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pixsync/internal/model"
)

const (
	// maxLookupConcurrency clamps Phase 1 parallelism. Lookups run in
	// small wait-all-then-advance batches, never unbounded fan-out.
	maxLookupConcurrency = 8

	// defaultAlbumChunkSize bounds the number of photo ids added to an
	// album in one remote call.
	defaultAlbumChunkSize = 500
)

// ReconcileOptions controls an album reconciliation run.
type ReconcileOptions struct {
	Account string
	// Limit caps the number of photos considered per phase; <= 0 means all.
	Limit int
	// Concurrency is the Phase 1 lookup batch size, clamped to
	// [1, maxLookupConcurrency].
	Concurrency int
	// ChunkSize is the Phase 2 add-to-album chunk size; <= 0 uses the default.
	ChunkSize int
	// DryRun skips all remote and catalog mutations but still advances the
	// counters.
	DryRun bool
}

// ReconcileStats summarizes both phases of a reconciliation run.
type ReconcileStats struct {
	IDsFound      int
	IDsSkipped    int
	IDErrors      int
	MembersAdded  int
	MemberErrors  int
	AlbumsCreated int
}

// FixAlbums runs the two-phase album backlog job.
//
// Phase 1 discovers remote photo identifiers via filename search for every
// backed-up photo that has an album but no identifier yet. Phase 2 groups
// photos that have both an identifier and an album but no recorded
// membership, and adds them to their remote albums in bounded chunks.
//
// Neither phase keeps failure state: the backlog is re-derived from the
// catalog on every run, so failed items are retried automatically on the
// next invocation. Running the job twice with no intervening remote change
// yields no additional work on the second run.
func (s *Service) FixAlbums(ctx context.Context, opts ReconcileOptions) (*ReconcileStats, error) {
	stats := &ReconcileStats{}

	if err := s.discoverRemoteIDs(ctx, opts, stats); err != nil {
		return stats, err
	}
	if err := s.reconcileMemberships(ctx, opts, stats); err != nil {
		return stats, err
	}

	s.logger.Info("album reconciliation complete",
		"account", opts.Account,
		"ids_found", stats.IDsFound,
		"ids_skipped", stats.IDsSkipped,
		"id_errors", stats.IDErrors,
		"members_added", stats.MembersAdded,
		"member_errors", stats.MemberErrors,
		"albums_created", stats.AlbumsCreated,
	)
	return stats, nil
}

// lookupResult carries the outcome of one Phase 1 filename search.
type lookupResult struct {
	photo    *model.ArchivePhoto
	remoteID string
	notFound bool
	err      error
}

// discoverRemoteIDs is Phase 1: filename-search every backed-up photo that
// has an album but no remote id, in batches of opts.Concurrency. Catalog
// writes happen sequentially after each batch completes; only the remote
// lookups fan out.
func (s *Service) discoverRemoteIDs(ctx context.Context, opts ReconcileOptions, stats *ReconcileStats) error {
	backlog, err := s.catalog.ListNeedingRemoteID(opts.Account, opts.Limit)
	if err != nil {
		return fmt.Errorf("listing photos needing remote id: %w", err)
	}
	if len(backlog) == 0 {
		return nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxLookupConcurrency {
		concurrency = maxLookupConcurrency
	}

	for start := 0; start < len(backlog); start += concurrency {
		if start > 0 {
			s.pacer.Pause()
		}

		end := start + concurrency
		if end > len(backlog) {
			end = len(backlog)
		}
		batch := backlog[start:end]

		results := make([]lookupResult, len(batch))
		var wg sync.WaitGroup
		for i, p := range batch {
			wg.Add(1)
			go func(i int, p *model.ArchivePhoto) {
				defer wg.Done()
				results[i] = s.lookupRemoteID(ctx, p)
			}(i, p)
		}
		wg.Wait()

		for _, res := range results {
			switch {
			case res.err != nil:
				// Transient failure: count it and leave the photo for the
				// next run.
				stats.IDErrors++
				s.logger.Error("remote id lookup failed", "file", res.photo.Filename, "error", res.err)
			case res.notFound:
				// Expected miss, e.g. the photo was deleted remotely.
				stats.IDsSkipped++
				s.logger.Debug("no remote match", "file", res.photo.Filename)
			default:
				stats.IDsFound++
				if opts.DryRun {
					continue
				}
				if err := s.catalog.SetRemotePhotoID(res.photo.ID, res.remoteID); err != nil {
					return fmt.Errorf("recording remote id for %s: %w", res.photo.Filename, err)
				}
			}
		}
	}

	return nil
}

// lookupRemoteID searches the remote store for a photo's filename and
// returns the identifier only on a confirmed unique match.
func (s *Service) lookupRemoteID(ctx context.Context, p *model.ArchivePhoto) lookupResult {
	res := lookupResult{photo: p}

	refs, err := s.remote.SearchByFilename(ctx, p.Filename)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			res.notFound = true
			return res
		}
		res.err = err
		return res
	}

	var match string
	for _, ref := range refs {
		if !strings.EqualFold(ref.Filename, p.Filename) {
			continue
		}
		if match != "" && match != ref.ID {
			// Ambiguous: never guess between multiple candidates.
			res.notFound = true
			return res
		}
		match = ref.ID
	}
	if match == "" {
		res.notFound = true
		return res
	}

	res.remoteID = match
	return res
}

// reconcileMemberships is Phase 2: group the membership backlog by album
// name and add the photos' remote ids to each remote album in fixed-size
// chunks.
func (s *Service) reconcileMemberships(ctx context.Context, opts ReconcileOptions, stats *ReconcileStats) error {
	backlog, err := s.catalog.ListNeedingMembership(opts.Account, opts.Limit)
	if err != nil {
		return fmt.Errorf("listing photos needing membership: %w", err)
	}
	if len(backlog) == 0 {
		return nil
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultAlbumChunkSize
	}

	// Group by album name, preserving first-seen order for stable runs.
	var albumNames []string
	byAlbum := make(map[string][]*model.ArchivePhoto)
	for _, p := range backlog {
		if _, ok := byAlbum[p.AlbumName]; !ok {
			albumNames = append(albumNames, p.AlbumName)
		}
		byAlbum[p.AlbumName] = append(byAlbum[p.AlbumName], p)
	}

	// Remote album ids resolved during this run.
	albumCache := make(map[string]*model.Album)

	for _, name := range albumNames {
		photos := byAlbum[name]

		album, err := s.resolveAlbum(ctx, opts, albumCache, name, stats)
		if err != nil {
			// Album-level failure: every photo in it stays in the backlog.
			stats.MemberErrors += len(photos)
			s.logger.Error("resolving album failed", "album", name, "error", err)
			continue
		}

		if err := s.addMembersChunked(ctx, opts, album, photos, chunkSize, stats); err != nil {
			return err
		}
	}

	return nil
}

// resolveAlbum returns the catalog album with its remote id populated,
// creating both the remote album and the catalog record as needed.
// If remote creation fails because the name is already taken, a concurrent
// creation is assumed and the album is re-fetched by name.
func (s *Service) resolveAlbum(ctx context.Context, opts ReconcileOptions, cache map[string]*model.Album, name string, stats *ReconcileStats) (*model.Album, error) {
	if album, ok := cache[name]; ok {
		return album, nil
	}

	album, err := s.catalog.FindAlbum(opts.Account, name)
	if err != nil {
		return nil, fmt.Errorf("finding album: %w", err)
	}
	if album == nil {
		album = &model.Album{
			ID:        s.idgen.New(),
			Account:   opts.Account,
			Name:      name,
			CreatedAt: s.clock.Now(),
		}
		if !opts.DryRun {
			if err := s.catalog.CreateAlbum(album); err != nil {
				return nil, fmt.Errorf("creating album record: %w", err)
			}
		}
	}

	if album.RemoteAlbumID == "" {
		remoteID, created, err := s.ensureRemoteAlbum(ctx, opts, name)
		if err != nil {
			return nil, err
		}
		if created {
			stats.AlbumsCreated++
		}
		album.RemoteAlbumID = remoteID
		if !opts.DryRun {
			if err := s.catalog.SetAlbumRemoteID(album.ID, remoteID); err != nil {
				return nil, fmt.Errorf("recording remote album id: %w", err)
			}
		}
	}

	cache[name] = album
	return album, nil
}

// ensureRemoteAlbum get-or-creates the remote album and returns its id and
// whether it was created during this call.
func (s *Service) ensureRemoteAlbum(ctx context.Context, opts ReconcileOptions, name string) (string, bool, error) {
	if opts.DryRun {
		return "dry-run", true, nil
	}

	remoteAlbums, err := s.remote.ListAlbums(ctx)
	if err != nil {
		return "", false, fmt.Errorf("listing remote albums: %w", err)
	}
	for _, ra := range remoteAlbums {
		if ra.Name == name {
			return ra.ID, false, nil
		}
	}

	created, err := s.remote.CreateAlbum(ctx, name)
	if err != nil {
		if errors.Is(err, ErrAlbumExists) {
			// Lost a creation race; the album must be listable now.
			remoteAlbums, err := s.remote.ListAlbums(ctx)
			if err != nil {
				return "", false, fmt.Errorf("re-listing remote albums: %w", err)
			}
			for _, ra := range remoteAlbums {
				if ra.Name == name {
					return ra.ID, false, nil
				}
			}
			return "", false, fmt.Errorf("album %q exists remotely but was not found by name", name)
		}
		return "", false, fmt.Errorf("creating remote album: %w", err)
	}
	return created.ID, true, nil
}

// addMembersChunked adds the photos' remote ids to the album in fixed-size
// chunks. A chunk that succeeds has every member recorded locally; a chunk
// that fails records nothing, mirroring the all-or-nothing remote call, and
// abandons the album's remaining chunks so they are retried next run.
func (s *Service) addMembersChunked(ctx context.Context, opts ReconcileOptions, album *model.Album, photos []*model.ArchivePhoto, chunkSize int, stats *ReconcileStats) error {
	for start := 0; start < len(photos); start += chunkSize {
		if start > 0 {
			s.pacer.Pause()
		}

		end := start + chunkSize
		if end > len(photos) {
			end = len(photos)
		}
		chunk := photos[start:end]

		if opts.DryRun {
			stats.MembersAdded += len(chunk)
			continue
		}

		ids := make([]string, len(chunk))
		for i, p := range chunk {
			ids[i] = p.RemotePhotoID
		}

		if err := s.remote.AddToAlbum(ctx, album.RemoteAlbumID, ids); err != nil {
			stats.MemberErrors += len(photos) - start
			s.logger.Error("adding photos to album failed",
				"album", album.Name, "chunk_size", len(chunk), "error", err)
			break
		}

		addedAt := s.clock.Now()
		for _, p := range chunk {
			if err := s.catalog.RecordMembership(album.ID, p.ID, addedAt); err != nil {
				return fmt.Errorf("recording membership for %s: %w", p.Filename, err)
			}
		}
		stats.MembersAdded += len(chunk)

		if err := s.catalog.TouchAlbumSynced(album.ID, addedAt); err != nil {
			return fmt.Errorf("updating album sync time: %w", err)
		}
	}

	return nil
}
