package repository

import (
	"context"
	"fmt"
	"sync"

	"ordernotify/internal/domain"
)

type memoryRow struct {
	id        int64
	order     domain.Order
	itemsBlob []byte
}

// MemoryStore in-memory хранилище заказов с автоинкрементным id.
// Используется в тестах и при STORE_DRIVER=memory.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	byOrderID map[string]memoryRow
	closed    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		byOrderID: make(map[string]memoryRow),
	}
}

// Ensure interfaces
var _ OrderStore = (*MemoryStore)(nil)

func (m *MemoryStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *MemoryStore) Save(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	blob, err := marshalItems(o.Items)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	if _, ok := m.byOrderID[o.OrderID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, o.OrderID)
	}
	row := memoryRow{id: m.nextID, order: *o, itemsBlob: blob}
	row.order.Items = nil
	m.nextID++
	m.byOrderID[o.OrderID] = row
	return nil
}

func (m *MemoryStore) GetByOrderID(ctx context.Context, orderID string) (*domain.StoredOrder, error) {
	m.mu.RLock()
	closed := m.closed
	row, ok := m.byOrderID[orderID]
	m.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	items, err := unmarshalItems(row.itemsBlob)
	if err != nil {
		return nil, err
	}
	so := &domain.StoredOrder{ID: row.id, Order: row.order}
	so.Items = items
	return so, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStorageUnavailable
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len количество сохранённых заказов
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byOrderID)
}
