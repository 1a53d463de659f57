package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"pixsync/internal/app"
	"pixsync/internal/config"
)

func testConfig(t *testing.T, archiveRoot string) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		BaseDir: base,
		LogDir:  filepath.Join(base, "log"),
		Catalog: config.CatalogConfig{Type: "memory"},
		Remote:  config.RemoteConfig{Type: "memory"},
		Tagger:  config.TaggerConfig{Type: "nop"},
		Accounts: []config.AccountConfig{
			{
				Name:           "alice",
				ArchiveRoot:    archiveRoot,
				RemoteURL:      "https://photos.example.com",
				RemoteUser:     "alice",
				RemotePassword: "secret",
				RemoteFolder:   "photos",
			},
		},
	}
}

func TestNewApp(t *testing.T) {
	t.Run("rejects a config without accounts", func(t *testing.T) {
		cfg := testConfig(t, "")
		cfg.Accounts = nil

		if _, err := app.NewApp(cfg, "Transfer"); err == nil {
			t.Error("NewApp() error = nil, want error")
		}
	})

	t.Run("rejects an account without a remote pairing", func(t *testing.T) {
		cfg := testConfig(t, "")
		cfg.Accounts[0].RemoteURL = ""

		if _, err := app.NewApp(cfg, "Transfer"); err == nil {
			t.Error("NewApp() error = nil, want error")
		}
	})
}

func TestApp_AccountNames(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Accounts = append(cfg.Accounts, config.AccountConfig{
		Name: "bob", RemoteURL: "https://photos.example.com", RemoteUser: "bob",
	})

	a, err := app.NewApp(cfg, "Transfer")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	t.Run("empty flag selects every account", func(t *testing.T) {
		names, err := a.AccountNames("")
		if err != nil {
			t.Fatalf("AccountNames() error = %v", err)
		}
		if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
			t.Errorf("AccountNames() = %v, want [alice bob]", names)
		}
	})

	t.Run("a name selects that account", func(t *testing.T) {
		names, err := a.AccountNames("bob")
		if err != nil {
			t.Fatalf("AccountNames() error = %v", err)
		}
		if len(names) != 1 || names[0] != "bob" {
			t.Errorf("AccountNames() = %v, want [bob]", names)
		}
	})

	t.Run("an unknown name is an error", func(t *testing.T) {
		if _, err := a.AccountNames("nobody"); err == nil {
			t.Error("AccountNames() error = nil, want error")
		}
	})
}

func TestApp_ImportArchive(t *testing.T) {
	t.Run("imports an export end to end", func(t *testing.T) {
		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "Trip"), 0755); err != nil {
			t.Fatalf("creating export dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(root, "Trip", "IMG1.jpg"), []byte("jpeg-bytes"), 0644); err != nil {
			t.Fatalf("writing media file: %v", err)
		}

		a, err := app.NewApp(testConfig(t, root), "ImportArchive")
		if err != nil {
			t.Fatalf("NewApp() error = %v", err)
		}
		defer a.Close()

		stats, err := a.ImportArchive("alice", "", false)
		if err != nil {
			t.Fatalf("ImportArchive() error = %v", err)
		}
		if stats.New != 1 {
			t.Errorf("stats.New = %d, want 1", stats.New)
		}

		photos, err := a.Photos("alice")
		if err != nil {
			t.Fatalf("Photos() error = %v", err)
		}
		if len(photos) != 1 || photos[0].AlbumName != "Trip" {
			t.Errorf("photos = %+v, want one photo in Trip", photos)
		}

		ops, err := a.History(10)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(ops) != 1 || ops[0].Operation != "ImportArchive" {
			t.Errorf("operations = %+v, want one ImportArchive row", ops)
		}
	})

	t.Run("fails without an archive root or path", func(t *testing.T) {
		a, err := app.NewApp(testConfig(t, ""), "ImportArchive")
		if err != nil {
			t.Fatalf("NewApp() error = %v", err)
		}
		defer a.Close()

		if _, err := a.ImportArchive("alice", "", false); err == nil {
			t.Error("ImportArchive() error = nil, want error")
		}
	})
}
