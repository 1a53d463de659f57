package pix

// Tagger writes an album label into a file's embedded metadata after a
// successful upload. This is a best-effort secondary write path: a tagging
// failure never reverts the transfer state.
type Tagger interface {
	TagAlbum(localPath, album string) error
}

// NopTagger ignores all tag requests.
type NopTagger struct{}

func (NopTagger) TagAlbum(string, string) error { return nil }
