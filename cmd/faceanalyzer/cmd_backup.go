package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HerbHall/faceanalyzer/internal/backup"
	"github.com/HerbHall/faceanalyzer/internal/config"
)

func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	output := fs.String("output", "", "output file path (default: faceanalyzer-backup-{timestamp}.tar.gz)")
	dbPath := fs.String("db", "", "history database path (default: history.path from config)")
	configFile := fs.String("config", "", "config file to read and include in the backup")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *dbPath == "" {
		cfg, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		*dbPath = cfg.GetString("history.path")
	}
	if *output == "" {
		*output = fmt.Sprintf("faceanalyzer-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}

	ctx := context.Background()
	if err := backup.Backup(ctx, *dbPath, *configFile, *output); err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Backup created: %s\n", *output)
}
