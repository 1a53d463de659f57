package remote

import (
	"fmt"

	"pixsync/internal/config"
	"pixsync/internal/pix"
)

// NewStoreFromConfig creates a RemoteStore for an account based on the
// remote config type. The returned client is not logged in.
func NewStoreFromConfig(cfg config.RemoteConfig, account *config.AccountConfig) (pix.RemoteStore, error) {
	switch cfg.Type {
	case "", "http":
		if account.RemoteURL == "" {
			return nil, fmt.Errorf("account %q has no remote_url", account.Name)
		}
		return NewClient(account.RemoteURL, nil), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}
