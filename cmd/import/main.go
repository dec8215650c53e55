package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"answersheet/internal/config"
	"answersheet/internal/logger"
	"answersheet/internal/repository/sqlstore"
	"answersheet/internal/service"
	"answersheet/internal/service/ai"
	"answersheet/internal/service/lock"
	"answersheet/internal/storage"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Command import stores every sheet image of a directory and creates an empty
// annotation for it, using the same database and storage as the server.
func main() {
	imagesDir := flag.String("images", "sheets", "Directory containing answer sheet images")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.NewLogger(cfg.LogDirectory, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Close()

	if cfg.DBDriver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}
	db, err := sqlstore.New(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	files, err := storage.NewFileStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	manager := service.NewManager(sqlstore.NewAnnotationRepository(db), files, nil,
		lock.NewLocalLocker(), nil, service.Options{Dedup: ai.DedupStrategy(cfg.BoxDedup)}, l)

	entries, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	fmt.Printf("Importing sheets from %s into %s\n", *imagesDir, cfg.DBDriver)

	imported, skipped := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		data, err := os.ReadFile(filepath.Join(*imagesDir, entry.Name()))
		if err != nil {
			log.Printf("Skipping %s: %v", entry.Name(), err)
			skipped++
			continue
		}

		ann, err := manager.SaveImage(ctx, entry.Name(), data)
		if err != nil {
			log.Printf("Skipping %s: %v", entry.Name(), err)
			skipped++
			continue
		}
		fmt.Printf("  %s -> %s (%dx%d)\n", entry.Name(), ann.ID, ann.Size.Width, ann.Size.Height)
		imported++
	}

	fmt.Printf("Imported %d sheets\n", imported)
	if skipped > 0 {
		fmt.Printf("Skipped %d files\n", skipped)
	}

	page, err := manager.ListAnnotations(ctx, 1, 1)
	if err == nil {
		fmt.Printf("Total annotations: %d\n", page.Total)
	}
}
