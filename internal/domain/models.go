package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout формат времени заказа (ISO-8601, UTC)
const TimestampLayout = time.RFC3339

// Channel канал уведомления продавца
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// ParseChannel сопоставляет значение поля channel с поддерживаемым каналом.
// Витрина присылает "whatsapp", это синоним chat.
func ParseChannel(s string) (Channel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail, true
	case "chat", "whatsapp":
		return ChannelChat, true
	default:
		return "", false
	}
}

// Customer покупатель
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrderItem позиция в заказе
type OrderItem struct {
	Name  string          `json:"name"`
	Qty   int64           `json:"qty"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image,omitempty"`
}

// Subtotal qty × price
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(it.Qty))
}

// Order каноническая запись заказа. После сохранения не изменяется.
type Order struct {
	OrderID   string          `json:"orderId"`
	Timestamp time.Time       `json:"timestamp"`
	Customer  Customer        `json:"customer"`
	Address   string          `json:"address"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Channel   Channel         `json:"channel"`
}

// ItemsTotal сумма qty × price по всем позициям
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// FormattedTime время заказа для сообщений и счёта
func (o *Order) FormattedTime() string {
	return o.Timestamp.UTC().Format(TimestampLayout)
}

// StoredOrder заказ в хранилище вместе с суррогатным автоинкрементным id
type StoredOrder struct {
	ID int64 `json:"id"`
	Order
}

// Money форматирует сумму для людей: $19.98
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
