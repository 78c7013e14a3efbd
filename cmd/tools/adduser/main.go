// Command adduser creates or updates a catalog account.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"library-catalog/internal/models"
)

func main() {
	var (
		username    = flag.String("username", "", "login name (required)")
		password    = flag.String("password", "", "password (default: CATALOG_NEW_PASSWORD env var)")
		email       = flag.String("email", "", "email address")
		firstName   = flag.String("first-name", "", "first name")
		lastName    = flag.String("last-name", "", "last name")
		staff       = flag.Bool("staff", false, "staff account (may import spreadsheets)")
		projects    = flag.Bool("projects", false, "grant the add, change and delete project permissions")
		permissions = flag.String("permissions", "", "extra comma-separated permissions")
		update      = flag.Bool("update", false, "update the password and flags of an existing user")
	)
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("CATALOG_DB_DSN")
	if dsn == "" {
		log.Fatal("CATALOG_DB_DSN environment variable is required")
	}
	if *username == "" {
		log.Fatal("-username is required")
	}
	if *password == "" {
		*password = os.Getenv("CATALOG_NEW_PASSWORD")
	}
	if *password == "" {
		log.Fatal("a password is required (-password or CATALOG_NEW_PASSWORD)")
	}

	perms := []string{}
	if *projects {
		perms = append(perms, models.ProjectPermissions...)
	}
	for _, p := range strings.Split(*permissions, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var id int64
	if *update {
		err = db.QueryRowContext(ctx, `
			UPDATE users SET password_hash = $1, is_staff = $2, permissions = $3, is_active = true
			WHERE username = $4
			RETURNING id`,
			string(hash), *staff, pq.Array(perms), *username).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			log.Fatalf("User %q does not exist", *username)
		}
	} else {
		err = db.QueryRowContext(ctx, `
			INSERT INTO users (username, password_hash, first_name, last_name, email, is_staff, permissions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			*username, string(hash), *firstName, *lastName, *email, *staff, pq.Array(perms)).Scan(&id)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			log.Fatalf("User %q already exists; use -update to change it", *username)
		}
	}
	if err != nil {
		log.Fatalf("Failed to save user: %v", err)
	}

	fmt.Printf("User saved successfully!\n\n")
	fmt.Printf("ID: %d\n", id)
	fmt.Printf("Username: %s\n", *username)
	fmt.Printf("Staff: %t\n", *staff)
	fmt.Printf("Permissions: %s\n", strings.Join(perms, ", "))
	fmt.Printf("\nLog in with:\n  catalogctl login -u %s\n", *username)
}
