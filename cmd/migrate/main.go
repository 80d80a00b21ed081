package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// tables created by migrations/, reported by --list.
var followupTables = []string{"companies", "documents", "page_views", "feedbacks", "timerex_bookings", "settings", "followups"}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if listOnly {
		if err := listTables(db); err != nil {
			log.Fatal(err)
		}
		return
	}

	files, err := migrationFiles(dir)
	if err != nil {
		log.Fatal(err)
	}

	var okCount, errCount int
	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Printf("  %s ... ", f)

		tx, err := db.Begin()
		if err != nil {
			fmt.Printf("BEGIN ERROR: %v\n", err)
			errCount++
			continue
		}
		if _, err := tx.Exec(content); err != nil {
			tx.Rollback()
			fmt.Printf("ERROR: %v\n", err)
			errCount++
		} else {
			tx.Commit()
			fmt.Println("OK")
			okCount++
		}
	}
	log.Printf("Done: %d OK, %d errors", okCount, errCount)
	if errCount > 0 {
		os.Exit(1)
	}
	log.Println("Migrations complete")
}

// migrationFiles returns the .sql files in dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func listTables(db *sql.DB) error {
	n := 0
	for _, t := range followupTables {
		var count int64
		err := db.QueryRow(`SELECT COUNT(*) FROM ` + t).Scan(&count)
		if err != nil {
			fmt.Printf("  %-18s missing\n", t)
			continue
		}
		fmt.Printf("  %-18s %d rows\n", t, count)
		n++
	}
	fmt.Printf("Total: %d/%d tables\n", n, len(followupTables))
	return nil
}
