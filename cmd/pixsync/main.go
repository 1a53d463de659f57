package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"pixsync/internal/app"
	"pixsync/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Transfer", "FixAlbums").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	a.Password = promptPassword

	return a, nil
}

func promptPassword(account string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for account %s: ", account)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

var rootCmd = &cobra.Command{
	Use:   "pixsync",
	Short: "Photo archive to remote store reconciliation tool",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Add at least one [[accounts]] block before running commands.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Catalog:  %s (%s)\n", cfg.Catalog.Type, cfg.Catalog.DataDir)
		for _, account := range cfg.Accounts {
			fmt.Printf("\nAccount %s:\n", account.Name)
			fmt.Printf("  Archive Root:  %s\n", account.ArchiveRoot)
			fmt.Printf("  Remote URL:    %s\n", account.RemoteURL)
			fmt.Printf("  Remote User:   %s\n", account.RemoteUser)
			fmt.Printf("  Remote Folder: %s\n", account.RemoteFolder)
		}
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import [PATH]",
	Short: "Import an archive export into the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountFlag, _ := cmd.Flags().GetString("account")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		overridePath := ""
		if len(args) > 0 {
			overridePath = args[0]
		}

		a, err := newApp("ImportArchive")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(fmt.Sprintf("account=%s path=%s dry_run=%t", accountFlag, overridePath, dryRun))

		accounts, err := a.AccountNames(accountFlag)
		if err != nil {
			return err
		}
		if overridePath != "" && len(accounts) > 1 {
			return fmt.Errorf("a PATH argument requires --account")
		}

		for _, account := range accounts {
			stats, err := a.ImportArchive(account, overridePath, dryRun)
			if err != nil {
				a.MarkFailed()
				return fmt.Errorf("importing account %s: %w", account, err)
			}
			fmt.Printf("%s: %d new, %d already uploaded, %d duplicate in archive\n",
				account, stats.New, stats.DuplicateRemote, stats.DuplicateBatch)
		}
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inventory the remote store into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountFlag, _ := cmd.Flags().GetString("account")

		a, err := newApp("ScanRemote")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(fmt.Sprintf("account=%s", accountFlag))

		accounts, err := a.AccountNames(accountFlag)
		if err != nil {
			return err
		}

		return forEachAccount(a, accounts, func(account string) error {
			count, err := a.ScanRemote(context.Background(), account)
			if err != nil {
				return err
			}
			fmt.Printf("%s: scanned %d remote photo(s)\n", account, count)
			return nil
		})
	},
}

// transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Upload pending photos to the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountFlag, _ := cmd.Flags().GetString("account")
		limit, _ := cmd.Flags().GetInt("limit")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		byAlbum, _ := cmd.Flags().GetBool("by-album")
		tag, _ := cmd.Flags().GetBool("tag")

		a, err := newApp("Transfer")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(fmt.Sprintf("account=%s limit=%d dry_run=%t", accountFlag, limit, dryRun))

		accounts, err := a.AccountNames(accountFlag)
		if err != nil {
			return err
		}

		return forEachAccount(a, accounts, func(account string) error {
			stats, err := a.Transfer(context.Background(), account, limit, dryRun, byAlbum, tag)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d synced, %d failed, %d skipped\n",
				account, stats.Synced, stats.Failed, stats.Skipped)
			if stats.Failed > 0 {
				a.MarkFailed()
			}
			return nil
		})
	},
}

// albums command
var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "Manage remote albums",
}

var albumsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List albums in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountFlag, _ := cmd.Flags().GetString("account")

		a, err := newApp("ListAlbums")
		if err != nil {
			return err
		}
		defer a.Close()

		accounts, err := a.AccountNames(accountFlag)
		if err != nil {
			return err
		}

		var rows [][]string
		for _, account := range accounts {
			albums, err := a.Albums(account)
			if err != nil {
				return err
			}
			for _, album := range albums {
				synced := "never"
				if album.LastSyncedAt != nil {
					synced = album.LastSyncedAt.Format("2006-01-02 15:04:05")
				}
				remoteID := album.RemoteAlbumID
				if remoteID == "" {
					remoteID = "-"
				}
				rows = append(rows, []string{account, album.Name, remoteID, synced})
			}
		}

		if len(rows) == 0 {
			fmt.Println("No albums recorded.")
			return nil
		}
		fmt.Println(renderTable(os.Stdout,
			[]string{"Account", "Album", "Remote ID", "Last Synced"},
			rows, nil))
		return nil
	},
}

var albumsFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Reconcile remote album memberships with the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountFlag, _ := cmd.Flags().GetString("account")
		limit, _ := cmd.Flags().GetInt("limit")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp("FixAlbums")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(fmt.Sprintf("account=%s limit=%d dry_run=%t", accountFlag, limit, dryRun))

		accounts, err := a.AccountNames(accountFlag)
		if err != nil {
			return err
		}

		return forEachAccount(a, accounts, func(account string) error {
			stats, err := a.FixAlbums(context.Background(), account, limit, concurrency, chunkSize, dryRun)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d remote id(s) found, %d not found, %d lookup error(s)\n",
				account, stats.IDsFound, stats.IDsSkipped, stats.IDErrors)
			fmt.Printf("%s: %d album(s) created, %d member(s) added, %d membership error(s)\n",
				account, stats.AlbumsCreated, stats.MembersAdded, stats.MemberErrors)
			if stats.IDErrors > 0 || stats.MemberErrors > 0 {
				a.MarkFailed()
			}
			return nil
		})
	},
}

// report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List archive photos that are safe to delete",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountFlag, _ := cmd.Flags().GetString("account")

		a, err := newApp("Report")
		if err != nil {
			return err
		}
		defer a.Close()

		accounts, err := a.AccountNames(accountFlag)
		if err != nil {
			return err
		}

		total := 0
		for _, account := range accounts {
			photos, err := a.Report(account)
			if err != nil {
				return err
			}
			for _, p := range photos {
				fmt.Println(p.LocalPath)
			}
			total += len(photos)
		}
		fmt.Fprintf(os.Stderr, "%d photo(s) safe to delete\n", total)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the catalog",
}

var dbPhotosCmd = &cobra.Command{
	Use:   "photos",
	Short: "List catalog photos",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountFlag, _ := cmd.Flags().GetString("account")

		a, err := newApp("ListPhotos")
		if err != nil {
			return err
		}
		defer a.Close()

		accounts, err := a.AccountNames(accountFlag)
		if err != nil {
			return err
		}

		var rows [][]string
		for _, account := range accounts {
			photos, err := a.Photos(account)
			if err != nil {
				return err
			}
			for _, p := range photos {
				status := "pending"
				switch {
				case p.CanBeRemoved:
					status = "removable"
				case p.IsBackedUp:
					status = "backed up"
				}
				album := p.AlbumName
				if album == "" {
					album = "-"
				}
				rows = append(rows, []string{
					account,
					p.Filename,
					album,
					p.CreationTime.Format("2006-01-02"),
					fmt.Sprintf("%d", p.FileSize),
					status,
				})
			}
		}

		if len(rows) == 0 {
			fmt.Println("No photos recorded.")
			return nil
		}
		fmt.Println(renderTable(os.Stdout,
			[]string{"Account", "Filename", "Album", "Taken", "Size", "Status"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
		return nil
	},
}

var dbHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No sync operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// forEachAccount runs fn per account, isolating failures so one account's
// bad credentials never block the others. The command fails if any account
// failed.
func forEachAccount(a *app.App, accounts []string, fn func(account string) error) error {
	var failed []string
	for _, account := range accounts {
		if err := fn(account); err != nil {
			fmt.Fprintf(os.Stderr, "account %s: %v\n", account, err)
			failed = append(failed, account)
		}
	}
	if len(failed) > 0 {
		a.MarkFailed()
		return fmt.Errorf("failed for account(s): %s", strings.Join(failed, ", "))
	}
	return nil
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// albums subcommands
	albumsCmd.AddCommand(albumsListCmd)
	albumsCmd.AddCommand(albumsFixCmd)
	albumsListCmd.Flags().StringP("account", "a", "", "Account name (default: all accounts)")
	albumsFixCmd.Flags().StringP("account", "a", "", "Account name (default: all accounts)")
	albumsFixCmd.Flags().IntP("limit", "n", 0, "Maximum photos to process (0 = no limit)")
	albumsFixCmd.Flags().Int("concurrency", 0, "Concurrent remote id lookups (default from config)")
	albumsFixCmd.Flags().Int("chunk-size", 0, "Photos per add-to-album call (default from config)")
	albumsFixCmd.Flags().Bool("dry-run", false, "Report what would change without mutating anything")

	// db subcommands
	dbCmd.AddCommand(dbPhotosCmd)
	dbCmd.AddCommand(dbHistoryCmd)
	dbPhotosCmd.Flags().StringP("account", "a", "", "Account name (default: all accounts)")
	dbHistoryCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("account", "a", "", "Account name (default: all accounts)")
	importCmd.Flags().Bool("dry-run", false, "Classify without writing to the catalog")
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("account", "a", "", "Account name (default: all accounts)")
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().StringP("account", "a", "", "Account name (default: all accounts)")
	transferCmd.Flags().IntP("limit", "n", 0, "Maximum photos to upload (0 = no limit)")
	transferCmd.Flags().Bool("dry-run", false, "Report what would upload without uploading")
	transferCmd.Flags().Bool("by-album", false, "Upload into per-album subfolders")
	transferCmd.Flags().Bool("tag", false, "Write album keyword sidecars after upload")
	rootCmd.AddCommand(albumsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(dbCmd)
}
