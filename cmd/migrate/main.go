package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kdimtricp/humetube/internal/database"
)

func main() {
	var (
		dbType         = flag.String("db", "postgres", "Database type (postgres or sqlite)")
		host           = flag.String("host", "localhost", "Database host")
		port           = flag.Int("port", 5432, "Database port")
		user           = flag.String("user", "humetube", "Database user")
		password       = flag.String("password", "humetube_dev", "Database password")
		dbName         = flag.String("name", "humetube", "Database name")
		sqlitePath     = flag.String("path", "./humetube.db", "SQLite database path")
		migrationsPath = flag.String("migrations", "", "Path to migrations directory (default: embedded)")
		status         = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	config := database.Config{
		Type:       *dbType,
		Host:       *host,
		Port:       *port,
		User:       *user,
		Password:   *password,
		Name:       *dbName,
		SQLitePath: *sqlitePath,
	}

	// Environment variables win over flags
	if env := os.Getenv("DB_TYPE"); env != "" {
		config.Type = env
	}
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Host = env
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Name = env
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		config.SQLitePath = env
	}

	db, err := database.NewDB(config)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	ctx := context.Background()
	source := "embedded schema"
	if *migrationsPath != "" {
		source = *migrationsPath
	}

	if !*status {
		fmt.Printf("Running migrations from %s...\n", source)
		if err := db.RunMigrations(ctx, *migrationsPath); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		fmt.Println("Migrations completed successfully!")
		return
	}

	if config.Type != "postgres" {
		fmt.Printf("%s creates its schema on open, nothing to migrate\n", config.Type)
		return
	}

	statuses, err := database.NewMigrator(db.Conn(), database.MigrationSource(*migrationsPath)).Status(ctx)
	if err != nil {
		log.Fatal("Failed to read migration status:", err)
	}

	fmt.Printf("Migration Status (%s):\n", source)
	fmt.Println("=================")
	for _, m := range statuses {
		state := "pending"
		if m.Applied {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}
