package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"pixsync/internal/archive"
	"pixsync/internal/catalog"
	"pixsync/internal/config"
	"pixsync/internal/model"
	"pixsync/internal/pix"
	"pixsync/internal/remote"
	"pixsync/internal/tagger"
)

// PasswordPrompt asks the operator for an account password. The CLI wires
// a terminal prompt; tests inject a fixed value.
type PasswordPrompt func(account string) (string, error)

// App is the application layer between the CLI and the pix.Service.
// It constructs all dependencies from config, opens the catalog (taking
// its single-writer lock) and manages the lifecycle on Close. Remote store
// clients are constructed per account per command invocation, never shared.
type App struct {
	cfg      *config.Config
	catalog  pix.Catalog
	tagger   pix.Tagger
	logger   pix.Logger
	clock    pix.Clock
	idgen    pix.IDGenerator
	op       *Operation
	logFile  *os.File
	Password PasswordPrompt
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Transfer",
// "FixAlbums"). The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured")
	}
	for i := range cfg.Accounts {
		if err := cfg.Accounts[i].Validate(); err != nil {
			return nil, err
		}
	}

	cat, err := catalog.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	tg, err := tagger.NewTaggerFromConfig(cfg.Tagger)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("creating tagger: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:     cfg,
		catalog: cat,
		tagger:  tg,
		logger:  &slogAdapter{l: logger},
		clock:   pix.RealClock{},
		idgen:   pix.UUIDGenerator{},
		op:      NewOperation(operation, ""),
		logFile: logFile,
		Password: func(string) (string, error) {
			return "", fmt.Errorf("no password prompt configured")
		},
	}, nil
}

// SetParameters records the CLI parameters on the pending operation.
func (a *App) SetParameters(params string) {
	a.op.Parameters = params
}

// MarkFailed sets the operation status that Close will persist.
func (a *App) MarkFailed() {
	a.op.Status = "error"
}

// persistOperation saves the operation to the catalog, giving it an
// auto-increment ID. Only catalog-mutating commands call this.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.catalog.CreateSyncOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// AccountNames resolves the --account flag: a name selects that account,
// empty selects all configured accounts.
func (a *App) AccountNames(flag string) ([]string, error) {
	if flag != "" {
		if _, err := a.cfg.Account(flag); err != nil {
			return nil, err
		}
		return []string{flag}, nil
	}
	names := make([]string, len(a.cfg.Accounts))
	for i := range a.cfg.Accounts {
		names[i] = a.cfg.Accounts[i].Name
	}
	return names, nil
}

// service builds a Service for one account. When connect is true the
// remote client is logged in and the returned closer logs it out; callers
// must always invoke the closer. delayMillis sets the pause between
// remote calls (0 disables pacing).
func (a *App) service(ctx context.Context, accountName string, connect bool, delayMillis int) (*pix.Service, func(), error) {
	account, err := a.cfg.Account(accountName)
	if err != nil {
		return nil, nil, err
	}

	store, err := remote.NewStoreFromConfig(a.cfg.Remote, account)
	if err != nil {
		return nil, nil, fmt.Errorf("creating remote client: %w", err)
	}

	closer := func() {}
	if connect {
		password := account.RemotePassword
		if password == "" {
			password, err = a.Password(account.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("reading password: %w", err)
			}
		}
		if err := store.Login(ctx, account.RemoteUser, password); err != nil {
			return nil, nil, fmt.Errorf("authenticating account %s: %w", account.Name, err)
		}
		closer = func() {
			if err := store.Logout(context.Background()); err != nil {
				a.logger.Warn("logout failed", "account", account.Name, "error", err)
			}
		}
	}

	pacer := pix.Pacer(pix.NopPacer{})
	if delayMillis > 0 {
		pacer = pix.NewDelayPacer(time.Duration(delayMillis) * time.Millisecond)
	}

	svc := pix.NewService(a.catalog, store, a.tagger, pacer, a.logger, a.clock, a.idgen)
	return svc, closer, nil
}

// ImportArchive scans the account's archive export (or overridePath when
// non-empty) and imports the result into the catalog.
func (a *App) ImportArchive(accountName, overridePath string, dryRun bool) (*pix.ImportStats, error) {
	if !dryRun {
		if err := a.persistOperation(); err != nil {
			return nil, err
		}
	}

	account, err := a.cfg.Account(accountName)
	if err != nil {
		return nil, err
	}
	root := account.ArchiveRoot
	if overridePath != "" {
		root = overridePath
	}
	if root == "" {
		return nil, fmt.Errorf("account %q has no archive_root and no path was given", accountName)
	}

	scanner := archive.NewScanner(a.logger)
	photos, _, err := scanner.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning archive: %w", err)
	}

	svc, closer, err := a.service(context.Background(), accountName, false, 0)
	if err != nil {
		return nil, err
	}
	defer closer()

	return svc.ImportArchive(accountName, photos, dryRun)
}

// ScanRemote inventories the account's remote folder into the catalog.
func (a *App) ScanRemote(ctx context.Context, accountName string) (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}

	account, err := a.cfg.Account(accountName)
	if err != nil {
		return 0, err
	}

	svc, closer, err := a.service(ctx, accountName, true, 0)
	if err != nil {
		return 0, err
	}
	defer closer()

	return svc.ScanRemote(ctx, accountName, account.RemoteFolder)
}

// Transfer uploads the account's pending photos.
func (a *App) Transfer(ctx context.Context, accountName string, limit int, dryRun, byAlbum, tag bool) (*pix.TransferStats, error) {
	if !dryRun {
		if err := a.persistOperation(); err != nil {
			return nil, err
		}
	}

	account, err := a.cfg.Account(accountName)
	if err != nil {
		return nil, err
	}

	svc, closer, err := a.service(ctx, accountName, !dryRun, a.cfg.Transfer.DelayMillis)
	if err != nil {
		return nil, err
	}
	defer closer()

	return svc.Transfer(ctx, pix.TransferOptions{
		Account:         accountName,
		RootFolder:      account.RemoteFolder,
		Limit:           limit,
		DryRun:          dryRun,
		OrganizeByAlbum: byAlbum || a.cfg.Transfer.OrganizeByAlbum,
		TagAlbums:       tag || a.cfg.Transfer.TagAlbums,
	})
}

// FixAlbums runs the two-phase album reconciliation backlog job.
func (a *App) FixAlbums(ctx context.Context, accountName string, limit, concurrency, chunkSize int, dryRun bool) (*pix.ReconcileStats, error) {
	if !dryRun {
		if err := a.persistOperation(); err != nil {
			return nil, err
		}
	}

	if concurrency <= 0 {
		concurrency = a.cfg.Reconcile.Concurrency
	}
	if chunkSize <= 0 {
		chunkSize = a.cfg.Reconcile.ChunkSize
	}

	svc, closer, err := a.service(ctx, accountName, !dryRun, a.cfg.Reconcile.DelayMillis)
	if err != nil {
		return nil, err
	}
	defer closer()

	return svc.FixAlbums(ctx, pix.ReconcileOptions{
		Account:     accountName,
		Limit:       limit,
		Concurrency: concurrency,
		ChunkSize:   chunkSize,
		DryRun:      dryRun,
	})
}

// Albums lists the catalog's albums for an account.
func (a *App) Albums(accountName string) ([]*model.Album, error) {
	return a.catalog.ListAlbums(accountName)
}

// Report returns the account's deletion candidates.
func (a *App) Report(accountName string) ([]*model.ArchivePhoto, error) {
	return a.catalog.ListRemovable(accountName)
}

// Photos lists the account's archive photos for inspection.
func (a *App) Photos(accountName string) ([]*model.ArchivePhoto, error) {
	return a.catalog.ListArchivePhotos(accountName)
}

// History returns the most recent sync operations.
func (a *App) History(limit int) ([]*model.SyncOperation, error) {
	return a.catalog.ListSyncOperations(limit)
}

// Close finalizes the operation record and releases all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.catalog.FinishSyncOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.catalog.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
