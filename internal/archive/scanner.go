// Package archive walks an extracted photo export tree and turns media
// files into catalog-ready archive photo records: content digest, original
// capture timestamp and inferred album label.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pixsync/internal/model"
	"pixsync/internal/pix"
)

// mediaExtensions is the fixed set of recognized media file extensions.
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".webp": true, ".heic": true, ".heif": true, ".tif": true, ".tiff": true,
	".nef": true, ".cr2": true, ".dng": true,
	".mp4": true, ".mov": true, ".avi": true, ".m4v": true, ".mkv": true,
	".3gp": true, ".mpg": true, ".wmv": true,
}

// Scanner discovers media files in an archive export.
type Scanner struct {
	logger pix.Logger
}

// NewScanner creates a Scanner.
func NewScanner(logger pix.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// ScanStats summarizes a scan.
type ScanStats struct {
	Scanned     int
	Unsupported int
}

// Scan walks root and returns a record for every recognized media file.
// Unsupported formats are counted and skipped, never treated as errors.
// Identity fields (id, source, account) are left for the importer to fill.
func (s *Scanner) Scan(root string) ([]*model.ArchivePhoto, *ScanStats, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving archive root: %w", err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return nil, nil, fmt.Errorf("archive root not accessible: %w", err)
	} else if !info.IsDir() {
		return nil, nil, fmt.Errorf("archive root is not a directory: %s", absRoot)
	}

	stats := &ScanStats{}
	var photos []*model.ArchivePhoto

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !mediaExtensions[ext] {
			if ext != ".json" && ext != ".html" {
				stats.Unsupported++
			}
			return nil
		}

		p, err := s.scanFile(absRoot, path)
		if err != nil {
			// A single unreadable file must not abort the scan.
			s.logger.Warn("skipping unreadable file", "path", path, "error", err)
			stats.Unsupported++
			return nil
		}

		photos = append(photos, p)
		stats.Scanned++
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking archive: %w", err)
	}

	s.logger.Info("archive scan complete", "root", absRoot,
		"scanned", stats.Scanned, "unsupported", stats.Unsupported)
	return photos, stats, nil
}

// scanFile builds the record for one media file.
func (s *Scanner) scanFile(root, path string) (*model.ArchivePhoto, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing: %w", err)
	}

	taken := ResolveTimestamp(path, info)

	return &model.ArchivePhoto{
		Photo: model.Photo{
			Filename:     filepath.Base(path),
			CreationTime: taken,
			FileSize:     info.Size(),
			ContentHash:  hash,
		},
		LocalPath: path,
		AlbumName: InferAlbum(root, path),
	}, nil
}

// hashFile computes the SHA-256 digest of a file without loading it whole.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
