package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ordernotify/internal/domain"
)

var (
	// ErrNotFound возвращается, когда заказ не найден
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID запись с таким orderId уже есть; перезапись запрещена
	ErrDuplicateID = errors.New("duplicate order id")
	// ErrStorageUnavailable хранилище недоступно или запись не зафиксирована
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// OrderStore интерфейс хранилища заказов. Save вставляет заказ ровно один раз:
// повтор с тем же orderId завершается ErrDuplicateID.
type OrderStore interface {
	// EnsureSchema идемпотентна, её можно вызывать перед каждой записью
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, o *domain.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.StoredOrder, error)
	Ping(ctx context.Context) error
	Close() error
}

// items are kept as an opaque JSON blob; order is preserved verbatim
func marshalItems(items []domain.OrderItem) ([]byte, error) {
	if items == nil {
		items = []domain.OrderItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return b, nil
}

func unmarshalItems(b []byte) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}
