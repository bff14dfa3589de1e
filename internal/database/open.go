package database

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/kdimtricp/humetube/internal/storage"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore returns the Store selected by config.Type together with the
// resource to close on shutdown. "memory" keeps everything in process. An
// empty migrationsPath uses the schema embedded in the binary.
func OpenStore(config Config, migrationsPath string) (storage.Store, io.Closer, error) {
	if config.Type == "memory" {
		log.Printf("[DB] Using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nopCloser{}, nil
	}

	db, err := NewDB(config)
	if err != nil {
		return nil, nil, err
	}

	if err := db.RunMigrations(context.Background(), migrationsPath); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if config.Type == "postgres" {
		log.Printf("[DB] Connected to %s@%s:%d/%s", config.User, config.Host, config.Port, config.Name)
	} else {
		log.Printf("[DB] Using sqlite database %s", config.SQLitePath)
	}
	return NewKVStore(db), db, nil
}
