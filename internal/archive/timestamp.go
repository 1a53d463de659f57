package archive

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// sidecar is the metadata JSON shipped alongside each media file in the
// export. Only the capture time is interesting here.
type sidecar struct {
	PhotoTakenTime struct {
		Timestamp string `json:"timestamp"` // epoch seconds as a string
	} `json:"photoTakenTime"`
	CreationTime struct {
		Timestamp string `json:"timestamp"`
	} `json:"creationTime"`
}

// sidecarNameLimit is the length exports truncate long sidecar basenames to.
const sidecarNameLimit = 46

// ResolveTimestamp recovers the original capture time of a media file.
// It tries the sidecar-JSON naming conventions of the various export
// vintages first, then embedded EXIF, then falls back to filesystem mtime.
func ResolveTimestamp(path string, info fs.FileInfo) time.Time {
	for _, candidate := range sidecarCandidates(path) {
		if ts, ok := readSidecarTime(candidate); ok {
			return ts
		}
	}

	if ts, ok := readExifTime(path); ok {
		return ts
	}

	return info.ModTime()
}

// sidecarCandidates returns the sidecar paths to probe, most specific
// first. Export vintages differ: some write "IMG.jpg.json", some
// "IMG.json", duplicates become "IMG.jpg(1).json" for "IMG(1).jpg", and
// long names are truncated before the ".json" suffix.
func sidecarCandidates(path string) []string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidates := []string{
		filepath.Join(dir, base+".json"),
		filepath.Join(dir, stem+".json"),
	}

	// "IMG(1).jpg" pairs with "IMG.jpg(1).json".
	if open := strings.LastIndex(stem, "("); open > 0 && strings.HasSuffix(stem, ")") {
		counter := stem[open:]
		candidates = append(candidates, filepath.Join(dir, stem[:open]+ext+counter+".json"))
	}

	// Long basenames are truncated before the suffix is added.
	if runes := []rune(base); len(runes) > sidecarNameLimit {
		candidates = append(candidates, filepath.Join(dir, string(runes[:sidecarNameLimit])+".json"))
	}

	return candidates
}

// readSidecarTime parses a sidecar file's capture timestamp.
func readSidecarTime(path string) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return time.Time{}, false
	}

	for _, raw := range []string{sc.PhotoTakenTime.Timestamp, sc.CreationTime.Timestamp} {
		if raw == "" {
			continue
		}
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || secs <= 0 {
			continue
		}
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// readExifTime extracts the capture time from embedded EXIF data.
func readExifTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	data, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}

	ts, err := data.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
