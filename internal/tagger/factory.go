package tagger

import (
	"fmt"

	"pixsync/internal/config"
	"pixsync/internal/pix"
)

// NewTaggerFromConfig creates a Tagger based on the tagger config type.
func NewTaggerFromConfig(cfg config.TaggerConfig) (pix.Tagger, error) {
	switch cfg.Type {
	case "xmp":
		return NewXMPTagger(), nil
	case "", "nop":
		return pix.NopTagger{}, nil
	default:
		return nil, fmt.Errorf("unknown tagger type: %s", cfg.Type)
	}
}
