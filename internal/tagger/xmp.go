// Package tagger provides the best-effort secondary write path that
// records an album label in a file's metadata after a successful upload.
package tagger

import (
	"fmt"
	"os"
	"strings"

	"pixsync/internal/pix"
)

// XMPTagger writes the album label as a keyword into an XMP sidecar next
// to the media file. Embedded tag rewriting would modify the archive
// export, which is treated as read-only; a sidecar carries the same
// information without touching the original bytes.
type XMPTagger struct{}

// NewXMPTagger creates an XMPTagger.
func NewXMPTagger() *XMPTagger {
	return &XMPTagger{}
}

const xmpTemplate = `<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description xmlns:dc="http://purl.org/dc/elements/1.1/">
   <dc:subject>
    <rdf:Bag>
     <rdf:li>%s</rdf:li>
    </rdf:Bag>
   </dc:subject>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
`

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func (t *XMPTagger) TagAlbum(localPath, album string) error {
	if album == "" {
		return nil
	}

	xmpPath := localPath + ".xmp"
	content := fmt.Sprintf(xmpTemplate, xmlEscaper.Replace(album))
	if err := os.WriteFile(xmpPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing xmp sidecar: %w", err)
	}
	return nil
}

// Compile-time check that XMPTagger implements pix.Tagger.
var _ pix.Tagger = (*XMPTagger)(nil)
