package pix

import (
	"strings"
	"time"

	"pixsync/internal/model"
)

// Classification is the resolver's verdict for a scanned photo.
type Classification int

const (
	// ClassNew means the photo is unknown to the remote store and to the
	// current batch; it should be imported as pending transfer.
	ClassNew Classification = iota
	// ClassDuplicateRemote means the photo already exists in the remote
	// store and must never be transferred.
	ClassDuplicateRemote
	// ClassDuplicateBatch means an identical photo was already accepted
	// earlier in the same scan.
	ClassDuplicateBatch
)

func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassDuplicateRemote:
		return "duplicate-in-remote"
	case ClassDuplicateBatch:
		return "duplicate-in-batch"
	default:
		return "unknown"
	}
}

// Resolver classifies scanned photos against the set of known remote photos
// and against items accepted earlier in the same scan. Two predicates are
// evaluated independently and OR'd: exact content-digest equality, and
// case-insensitive filename equality combined with creation date equality at
// day granularity. Either match makes a photo a duplicate.
type Resolver struct {
	remoteHashes  map[string]struct{}
	remoteNameDay map[string]struct{}
	batchHashes   map[string]struct{}
	batchNameDay  map[string]struct{}
}

// NewResolver builds a resolver indexed over the given remote photos.
func NewResolver(remote []*model.RemotePhoto) *Resolver {
	r := &Resolver{
		remoteHashes:  make(map[string]struct{}),
		remoteNameDay: make(map[string]struct{}),
		batchHashes:   make(map[string]struct{}),
		batchNameDay:  make(map[string]struct{}),
	}
	for _, p := range remote {
		if p.ContentHash != "" {
			r.remoteHashes[p.ContentHash] = struct{}{}
		}
		if key, ok := nameDayKey(p.Filename, p.CreationTime); ok {
			r.remoteNameDay[key] = struct{}{}
		}
	}
	return r
}

// Classify returns the verdict for a scanned photo. Remote duplicates take
// precedence over in-batch duplicates.
func (r *Resolver) Classify(p *model.ArchivePhoto) Classification {
	key, hasKey := nameDayKey(p.Filename, p.CreationTime)

	if _, ok := r.remoteHashes[p.ContentHash]; ok && p.ContentHash != "" {
		return ClassDuplicateRemote
	}
	if hasKey {
		if _, ok := r.remoteNameDay[key]; ok {
			return ClassDuplicateRemote
		}
	}

	if _, ok := r.batchHashes[p.ContentHash]; ok && p.ContentHash != "" {
		return ClassDuplicateBatch
	}
	if hasKey {
		if _, ok := r.batchNameDay[key]; ok {
			return ClassDuplicateBatch
		}
	}

	return ClassNew
}

// Accept records a photo as part of the current batch so later items in the
// same scan can be classified against it.
func (r *Resolver) Accept(p *model.ArchivePhoto) {
	if p.ContentHash != "" {
		r.batchHashes[p.ContentHash] = struct{}{}
	}
	if key, ok := nameDayKey(p.Filename, p.CreationTime); ok {
		r.batchNameDay[key] = struct{}{}
	}
}

// nameDayKey builds the fallback identity key: lowercased filename plus the
// creation date truncated to the day. Day granularity tolerates time-of-day
// drift introduced by export or re-encoding.
func nameDayKey(filename string, t time.Time) (string, bool) {
	if filename == "" || t.IsZero() {
		return "", false
	}
	return strings.ToLower(filename) + "|" + t.UTC().Format("2006-01-02"), true
}
