package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"library-catalog/pkg/importer"
)

func main() {
	var (
		filePath    = flag.String("file", "", "workbook to import (.xlsx)")
		mappingPath = flag.String("mapping", "", "sheet mapping YAML (default: built-in)")
		dryRun      = flag.Bool("dry-run", false, "report without writing")
		maxErrors   = flag.Int("max-errors", 50, "abort after this many row errors")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: import_excel -file=catalog.xlsx [-mapping=mapping.yaml] [-dry-run] [-max-errors=50]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	dbURL := os.Getenv("CATALOG_DB_DSN")
	if dbURL == "" {
		log.Fatal("CATALOG_DB_DSN environment variable is required")
	}

	mapping, err := importer.LoadMapping(*mappingPath)
	if err != nil {
		log.Fatalf("Failed to load mapping: %v", err)
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("Failed to open Excel file: %v", err)
	}
	defer file.Close()

	fmt.Printf("Importing from %s (dry_run=%v)\n", *filePath, *dryRun)
	fmt.Println(strings.Repeat("=", 60))

	summary, err := importer.ImportExcel(context.Background(), db, file, importer.ImportOptions{
		Mapping:   mapping,
		DryRun:    *dryRun,
		MaxErrors: *maxErrors,
	})

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Total inserted: %d\n", summary.Inserted)
	fmt.Printf("Total updated: %d\n", summary.Updated)
	fmt.Printf("Total skipped: %d\n", summary.Skipped)
	fmt.Printf("Total errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	for _, sheet := range summary.Sheets {
		fmt.Printf("  %s: inserted=%d, updated=%d, skipped=%d, errors=%d\n",
			sheet.Name, sheet.Inserted, sheet.Updated, sheet.Skipped, sheet.Errors)
		for _, sample := range sheet.Samples {
			fmt.Printf("      Row %d: %s\n", sample.Row, sample.Message)
		}
	}

	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
}
