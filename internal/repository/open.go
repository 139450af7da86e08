package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ordernotify/internal/config"
)

// DefaultDBPath путь базы, если ORDERS_DB_PATH не задан: временный каталог ОС
func DefaultDBPath() string {
	return filepath.Join(os.TempDir(), "orders.db")
}

// Open создаёт хранилище по STORE_DRIVER
func Open(ctx context.Context, cfg config.Store) (OrderStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = DefaultDBPath()
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	case "dynamodb":
		client, err := NewDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		store := NewDynamoStore(client, cfg.TableName)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
