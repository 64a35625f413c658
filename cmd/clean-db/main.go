package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Development helper that wipes all authorization data. Never point it
// at a production database.
func main() {
	ctx := context.Background()

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" && len(os.Args) > 1 {
		connStr = os.Args[1]
	}
	if connStr == "" {
		log.Fatal("Usage: clean-db <connection-string> (or set DATABASE_URL)")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("Cleaning database...")

	tables := []string{
		"acls",
		"roles",
	}

	for _, table := range tables {
		_, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			fmt.Printf("Warning: failed to truncate %s: %v\n", table, err)
		} else {
			fmt.Printf("✓ Cleared %s\n", table)
		}
	}

	fmt.Println("\n✓✓✓ Database cleaned successfully!")
}
