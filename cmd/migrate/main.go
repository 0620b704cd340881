// Command to migrate monitor state and notification history from JSON files to SQLite
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stock-watch/internal/store"
)

const version = "1.0.0"

func main() {
	dataDir := flag.String("dir", "./data", "Data directory containing the JSON state files")
	dryRun := flag.Bool("dry-run", false, "Show what would be done without making changes")
	force := flag.Bool("force", false, "Force overwrite existing SQLite database")
	versionFlag := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("migrate version %s\n", version)
		return
	}

	fmt.Printf("=== stock-watch state migration v%s ===\n\n", version)

	if _, err := os.Stat(*dataDir); os.IsNotExist(err) {
		fmt.Printf("error: data directory does not exist: %s\n", *dataDir)
		os.Exit(1)
	}

	dbPath := filepath.Join(*dataDir, "stock-watch.db")
	if _, err := os.Stat(dbPath); err == nil && !*force {
		fmt.Printf("error: SQLite database already exists: %s\n", dbPath)
		fmt.Println("pass -force to overwrite it, or delete the file first")
		os.Exit(1)
	}

	src, err := store.NewFileStore(*dataDir)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	keys, err := src.Keys(ctx)
	if err != nil {
		fmt.Printf("error: cannot read state file: %v\n", err)
		os.Exit(1)
	}
	history, err := src.ListNotifications(ctx, "", 0)
	if err != nil {
		fmt.Printf("warning: cannot read notification history: %v\n", err)
	}
	fmt.Printf("found %d product states\n", len(keys))
	fmt.Printf("found %d notification records\n", len(history))

	if *dryRun {
		fmt.Println("\n=== dry run, nothing was changed ===")
		for _, k := range keys {
			fmt.Printf("  state: %s\n", k)
		}
		return
	}

	backupDir := *dataDir + "_backup_" + time.Now().Format("20060102_150405")
	if err := backupFiles(src.Files(), backupDir); err != nil {
		fmt.Printf("warning: backup failed: %v\n", err)
	} else {
		fmt.Printf("backup written to %s\n", backupDir)
	}

	if *force {
		for _, f := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			os.Remove(f)
		}
	}

	dst, err := store.NewSQLite(*dataDir)
	if err != nil {
		fmt.Printf("error: cannot create SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer dst.Close()

	res, err := store.Copy(ctx, src, dst)
	if err != nil {
		fmt.Printf("error: migration stopped: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("migration complete")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("\nstates: %d\n", res.States)
	fmt.Printf("notifications: %d\n", res.Notifications)
	fmt.Printf("\ndatabase: %s\n", dbPath)
	fmt.Println("next: set STORE_BACKEND=sqlite and restart the service")
}

func backupFiles(files []string, backupDir string) error {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return err
	}
	for _, src := range files {
		data, err := os.ReadFile(src)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(backupDir, filepath.Base(src)), data, 0644); err != nil {
			return err
		}
	}
	return nil
}
