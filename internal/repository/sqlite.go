package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sqlite "modernc.org/sqlite"

	"ordernotify/internal/domain"
)

// DriverName pure Go драйвер SQLite
const DriverName = "sqlite"

// extended result code SQLITE_CONSTRAINT_UNIQUE
const sqliteConstraintUnique = 2067

const schemaSQL = `
CREATE TABLE IF NOT EXISTS orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id TEXT NOT NULL UNIQUE,
    customer_name TEXT NOT NULL,
    customer_email TEXT NOT NULL,
    address TEXT NOT NULL,
    items_json TEXT NOT NULL,
    total TEXT NOT NULL,
    channel TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

const insertOrderSQL = `
INSERT INTO orders (order_id, customer_name, customer_email, address, items_json, total, channel, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const selectOrderSQL = `
SELECT id, order_id, customer_name, customer_email, address, items_json, total, channel, created_at
FROM orders
WHERE order_id = ?
`

// SQLiteStore хранилище заказов в файле SQLite
type SQLiteStore struct {
	db *sql.DB
}

var _ OrderStore = (*SQLiteStore)(nil)

// openDatabase opens a SQLite database with durable write settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		// every commit is fsynced before Save returns
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore открывает базу по пути dbPath (":memory:" для тестов) и создаёт схему
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrStorageUnavailable, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: create schema: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Save вставляет заказ в отдельной транзакции. Схема проверяется перед каждой записью.
func (s *SQLiteStore) Save(ctx context.Context, o *domain.Order) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	items, err := marshalItems(o.Items)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertOrderSQL,
		o.OrderID, o.Customer.Name, o.Customer.Email, o.Address,
		string(items), o.Total.String(), string(o.Channel),
		o.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, o.OrderID)
		}
		return fmt.Errorf("%w: insert order: %w", ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) GetByOrderID(ctx context.Context, orderID string) (*domain.StoredOrder, error) {
	var (
		so        domain.StoredOrder
		itemsJSON string
		total     string
		channel   string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, selectOrderSQL, orderID).Scan(
		&so.ID, &so.OrderID, &so.Customer.Name, &so.Customer.Email, &so.Address,
		&itemsJSON, &total, &channel, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select order: %w", ErrStorageUnavailable, err)
	}

	if so.Items, err = unmarshalItems([]byte(itemsJSON)); err != nil {
		return nil, err
	}
	if so.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("decode total: %w", err)
	}
	if so.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	so.Channel = domain.Channel(channel)
	return &so, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqliteConstraintUnique {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
