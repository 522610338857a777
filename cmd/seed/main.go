package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/argus-sec/argus/internal/catalog"
	"github.com/argus-sec/argus/internal/database"
)

// Seeds a local development environment: writes the built-in mitigation
// catalog to a file operators can edit, and prepares the archive database.
func main() {
	catalogPath := filepath.Join("config", "catalog.yml")
	if len(os.Args) > 1 {
		catalogPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(catalogPath), 0o755); err != nil {
		log.Fatalf("create catalog directory: %v", err)
	}

	if _, err := os.Stat(catalogPath); err == nil {
		fmt.Printf("  Catalog already exists: %s\n", catalogPath)
	} else {
		if err := catalog.Save(catalogPath, catalog.Default()); err != nil {
			log.Fatalf("write catalog: %v", err)
		}
		fmt.Printf("✓ Wrote default mitigation catalog: %s\n", catalogPath)
	}

	dbPath := filepath.Join("data", "argus.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("create data directory: %v", err)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	fmt.Println("✓ Database migrated successfully")

	fmt.Println("\n✓ Seeding completed successfully!")
	fmt.Println("  You can now start the orchestrator with ARGUS_CATALOG_PATH=" + catalogPath)
}
