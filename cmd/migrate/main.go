// Command migrate applies the embedded schema migrations to CATALOG_DB_DSN.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"library-catalog/internal/migrations"
)

func main() {
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	flag.Parse()

	if *list {
		ms, err := migrations.List()
		if err != nil {
			log.Fatal("Failed to read migrations:", err)
		}
		for _, m := range ms {
			fmt.Printf("%s  %s\n", m.Checksum[:12], m.Filename)
		}
		return
	}

	_ = godotenv.Load()
	dsn := os.Getenv("CATALOG_DB_DSN")
	if dsn == "" {
		log.Fatal("CATALOG_DB_DSN environment variable is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	applied, err := migrations.Apply(ctx, db)
	if err != nil {
		log.Fatal("Failed to apply migrations:", err)
	}
	for _, f := range applied {
		fmt.Printf("Applied %s\n", f)
	}
	if len(applied) == 0 {
		fmt.Println("Database is up to date")
	} else {
		fmt.Println("All migrations applied successfully")
	}
}
