package pix

import (
	"context"
	"fmt"
	"time"

	"pixsync/internal/model"
)

// Service is the orchestration layer that coordinates the catalog, the
// remote store client and the tagger to perform the high-level operations
// exposed by the CLI.
type Service struct {
	catalog Catalog
	remote  RemoteStore
	tagger  Tagger
	pacer   Pacer
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewService creates a Service with the provided dependencies. The remote
// store client must already be logged in; the Service never authenticates.
func NewService(catalog Catalog, remote RemoteStore, tagger Tagger, pacer Pacer, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		catalog: catalog,
		remote:  remote,
		tagger:  tagger,
		pacer:   pacer,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// ImportStats summarizes an archive import.
type ImportStats struct {
	New             int
	DuplicateRemote int
	DuplicateBatch  int
}

// ImportArchive classifies scanned archive photos against the catalog's
// remote inventory and records them. New photos become pending transfers.
// Photos already present remotely are recorded as satisfied (backed up and
// removable) so deletion-candidate reporting stays correct without ever
// transferring them. In-batch duplicates are counted and dropped.
//
// Importing the same archive twice is idempotent: identity keys are stable
// and the catalog upsert never touches status fields on conflict.
func (s *Service) ImportArchive(account string, photos []*model.ArchivePhoto, dryRun bool) (*ImportStats, error) {
	remote, err := s.catalog.ListRemotePhotos(account)
	if err != nil {
		return nil, fmt.Errorf("listing remote photos: %w", err)
	}

	resolver := NewResolver(remote)
	stats := &ImportStats{}
	now := s.clock.Now()

	for _, p := range photos {
		p.ID = model.PhotoID(model.SourceArchive, account, p.ContentHash)
		p.Source = model.SourceArchive
		p.Account = account
		p.LastScannedAt = now

		class := resolver.Classify(p)
		switch class {
		case ClassDuplicateBatch:
			stats.DuplicateBatch++
			s.logger.Debug("duplicate within batch", "path", p.LocalPath)
			continue
		case ClassDuplicateRemote:
			stats.DuplicateRemote++
			p.IsBackedUp = true
			p.CanBeRemoved = true
			s.logger.Debug("already in remote store", "path", p.LocalPath)
		case ClassNew:
			stats.New++
		}

		resolver.Accept(p)

		if dryRun {
			continue
		}
		if err := s.catalog.UpsertArchivePhoto(p); err != nil {
			return stats, fmt.Errorf("recording photo %s: %w", p.Filename, err)
		}
		if class == ClassDuplicateRemote {
			// The upsert only refreshes last_scanned_at for existing rows,
			// so the satisfied state must go through the transitions too.
			if err := s.catalog.MarkBackedUp(p.ID); err != nil {
				return stats, fmt.Errorf("marking photo satisfied %s: %w", p.Filename, err)
			}
		}
	}

	s.logger.Info("archive import complete",
		"account", account,
		"new", stats.New,
		"duplicate_remote", stats.DuplicateRemote,
		"duplicate_batch", stats.DuplicateBatch,
	)
	return stats, nil
}

// ScanRemote inventories the given remote folder into the catalog as
// remote photo records. Existing records only get their scan timestamp
// refreshed.
func (s *Service) ScanRemote(ctx context.Context, account, folderPath string) (int, error) {
	refs, err := s.remote.ListFolderPhotos(ctx, folderPath)
	if err != nil {
		return 0, fmt.Errorf("listing remote folder %s: %w", folderPath, err)
	}

	now := s.clock.Now()
	count := 0
	for _, ref := range refs {
		p := &model.RemotePhoto{
			Photo: model.Photo{
				ID:            model.PhotoID(model.SourceRemote, account, ref.ID),
				Source:        model.SourceRemote,
				Account:       account,
				Filename:      ref.Filename,
				FileSize:      ref.Size,
				ContentHash:   ref.ContentHash,
				LastScannedAt: now,
			},
			RemotePath:       ref.FolderPath,
			RemoteInternalID: ref.ID,
		}
		if ts, err := parseRemoteTime(ref.TakenAt); err == nil {
			p.CreationTime = ts
		}
		if err := s.catalog.UpsertRemotePhoto(p); err != nil {
			return count, fmt.Errorf("recording remote photo %s: %w", ref.Filename, err)
		}
		count++
	}

	s.logger.Info("remote scan complete", "account", account, "folder", folderPath, "photos", count)
	return count, nil
}

// parseRemoteTime parses the capture timestamp the remote store reports.
// Stores vary between full RFC 3339 and a bare date.
func parseRemoteTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

// Report returns the archive photos that are safe to delete from the source
// export: everything transferred or already satisfied remotely.
func (s *Service) Report(account string) ([]*model.ArchivePhoto, error) {
	return s.catalog.ListRemovable(account)
}
