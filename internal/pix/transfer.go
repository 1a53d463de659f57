package pix

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
)

// TransferOptions controls a transfer run.
type TransferOptions struct {
	Account string
	// RootFolder is the destination folder on the remote store.
	RootFolder string
	// Limit caps the number of items considered; <= 0 means no limit.
	Limit int
	// DryRun skips uploads and catalog mutations.
	DryRun bool
	// OrganizeByAlbum uploads into a per-album subfolder of RootFolder.
	OrganizeByAlbum bool
	// TagAlbums writes the album label into the file's embedded tags after
	// a successful upload.
	TagAlbums bool
}

// TransferStats summarizes a transfer run.
type TransferStats struct {
	Synced  int
	Failed  int
	Skipped int
	Tagged  int
}

// Transfer uploads the account's pending archive photos to the remote store.
//
// Items are processed in creation-time order so repeated limited runs resume
// where the previous one stopped. A photo is marked backed up only after the
// upload call reports success, never optimistically: an interrupted run leaves
// at worst an uploaded-but-unrecorded photo, which the next run re-uploads
// (at-least-once semantics). Per-item failures are counted and the run
// continues.
func (s *Service) Transfer(ctx context.Context, opts TransferOptions) (*TransferStats, error) {
	pending, err := s.catalog.ListPendingTransfer(opts.Account, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending transfers: %w", err)
	}

	stats := &TransferStats{}
	ensuredFolders := make(map[string]bool)

	for i, p := range pending {
		if i > 0 {
			s.pacer.Pause()
		}

		folder := opts.RootFolder
		if opts.OrganizeByAlbum && p.AlbumName != "" {
			folder = path.Join(folder, SanitizeAlbumName(p.AlbumName))
		}

		if opts.DryRun {
			s.logger.Info("would upload", "file", p.Filename, "folder", folder)
			stats.Synced++
			continue
		}

		f, err := os.Open(p.LocalPath)
		if err != nil {
			if os.IsNotExist(err) {
				// The export may have been pruned since import; not an error.
				s.logger.Warn("local file missing, skipping", "path", p.LocalPath)
				stats.Skipped++
				continue
			}
			s.logger.Error("opening local file", "path", p.LocalPath, "error", err)
			stats.Failed++
			continue
		}

		if !ensuredFolders[folder] {
			if err := s.remote.EnsureFolder(ctx, folder); err != nil {
				f.Close()
				s.logger.Error("ensuring remote folder", "folder", folder, "error", err)
				stats.Failed++
				continue
			}
			ensuredFolders[folder] = true
		}

		err = s.remote.Upload(ctx, folder, p.Filename, f, p.FileSize)
		f.Close()
		if err != nil {
			s.logger.Error("upload failed", "file", p.Filename, "error", err)
			stats.Failed++
			continue
		}

		if err := s.catalog.MarkBackedUp(p.ID); err != nil {
			return stats, fmt.Errorf("marking %s backed up: %w", p.Filename, err)
		}
		stats.Synced++
		s.logger.Info("uploaded", "file", p.Filename, "folder", folder)

		if opts.TagAlbums && p.AlbumName != "" {
			if err := s.tagger.TagAlbum(p.LocalPath, p.AlbumName); err != nil {
				// Best effort: the transfer already succeeded.
				s.logger.Warn("tagging failed", "file", p.Filename, "error", err)
			} else {
				stats.Tagged++
			}
		}
	}

	s.logger.Info("transfer complete",
		"account", opts.Account,
		"synced", stats.Synced,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"tagged", stats.Tagged,
	)
	return stats, nil
}

// placeholderAlbumName replaces album names that sanitize to nothing.
const placeholderAlbumName = "Unsorted"

// SanitizeAlbumName makes an album name safe to use as a remote folder
// segment: reserved filesystem characters are replaced with underscores,
// path-traversal sequences and leading separators are stripped, and an
// empty result falls back to a fixed placeholder.
func SanitizeAlbumName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune('_')
		default:
			if r < 0x20 {
				b.WriteRune('_')
				continue
			}
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	cleaned = strings.ReplaceAll(cleaned, "..", "")
	cleaned = strings.Trim(cleaned, " .")
	cleaned = strings.TrimLeft(cleaned, "_")
	if strings.TrimSpace(cleaned) == "" {
		return placeholderAlbumName
	}
	return cleaned
}
