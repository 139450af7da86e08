package service

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ordernotify/internal/domain"
)

// money amounts outside these bounds are rejected before any arithmetic
const (
	maxMoneyExponent = 12
	maxMoneyDigits   = 20
	maxMoneyScale    = 4
	maxMoneyText     = 40
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// storefront images are usually relative paths like assets/img/x.jpg
	_ = v.RegisterValidation("uriref", func(fl validator.FieldLevel) bool {
		_, err := url.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// OrderIDPrefix маркер идентификатора заказа
const OrderIDPrefix = "ORD-"

// NewOrderID ORD- и 10 hex-символов из случайного UUID (crypto/rand)
func NewOrderID() string {
	u := uuid.New()
	return OrderIDPrefix + strings.ToUpper(hex.EncodeToString(u[:])[:10])
}

// Normalizer единственная граница между недоверенным телом запроса и domain.Order.
// orderId и timestamp всегда генерируются здесь.
type Normalizer struct {
	newID       func() string
	now         func() time.Time
	strictTotal bool
	logger      *zap.Logger
}

type NormalizerOption func(*Normalizer)

func WithIDGenerator(f func() string) NormalizerOption {
	return func(n *Normalizer) { n.newID = f }
}

func WithClock(f func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = f }
}

// WithStrictTotal отклоняет заказ, если total != Σ qty×price
func WithStrictTotal(strict bool) NormalizerOption {
	return func(n *Normalizer) { n.strictTotal = strict }
}

func NewNormalizer(logger *zap.Logger, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		newID:  NewOrderID,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize проверяет поля в фиксированном порядке и возвращает ошибку по первому
// неверному полю (*domain.Error, Kind = RejectedInput)
func (n *Normalizer) Normalize(raw map[string]any) (*domain.Order, error) {
	if raw == nil {
		return nil, domain.Invalid("body", "must be a JSON object")
	}

	customer, _ := raw["customer"].(map[string]any)
	name, err := requiredString(customer, "name", "customer.name")
	if err != nil {
		return nil, err
	}
	email, err := requiredString(customer, "email", "customer.email")
	if err != nil {
		return nil, err
	}
	address, err := requiredString(raw, "address", "address")
	if err != nil {
		return nil, err
	}

	items, err := normalizeItems(raw["items"])
	if err != nil {
		return nil, err
	}

	totalRaw, ok := raw["total"]
	if !ok || totalRaw == nil {
		return nil, domain.Invalid("total", "is required")
	}
	total, ok := toDecimal(totalRaw)
	if !ok {
		return nil, domain.Invalid("total", "must be a number, got %v", totalRaw)
	}
	if !isMoney(total) {
		return nil, domain.Invalid("total", "must be an amount with at most %d decimal places", maxMoneyScale)
	}
	if total.IsNegative() {
		return nil, domain.Invalid("total", "must not be negative")
	}

	channel, err := requiredString(raw, "channel", "channel")
	if err != nil {
		return nil, err
	}

	// unknown tags are kept as sent; the dispatcher rejects them after storage
	tag := domain.Channel(strings.ToLower(channel))
	if parsed, ok := domain.ParseChannel(channel); ok {
		tag = parsed
	}

	o := &domain.Order{
		OrderID:   n.newID(),
		Timestamp: n.now().UTC(),
		Customer:  domain.Customer{Name: name, Email: email},
		Address:   address,
		Items:     items,
		Total:     total,
		Channel:   tag,
	}

	if sum := o.ItemsTotal(); !sum.Equal(total) {
		if n.strictTotal {
			return nil, domain.Invalid("total", "%s does not match items subtotal %s", total.String(), sum.String())
		}
		n.logger.Warn("Order total differs from items subtotal",
			zap.String("order_id", o.OrderID),
			zap.String("total", total.String()),
			zap.String("items_subtotal", sum.String()))
	}
	return o, nil
}

func normalizeItems(v any) ([]domain.OrderItem, error) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, domain.Invalid("items", "must be a non-empty list")
	}
	items := make([]domain.OrderItem, 0, len(list))
	for i, entry := range list {
		field := fmt.Sprintf("items[%d]", i)
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, domain.Invalid(field, "must be an object")
		}

		name, err := requiredString(m, "name", field+".name")
		if err != nil {
			return nil, err
		}

		qty, ok := toQty(m["qty"])
		if !ok {
			return nil, domain.Invalid(field+".qty", "must be a positive integer, got %v", m["qty"])
		}

		price, ok := toDecimal(m["price"])
		if !ok {
			return nil, domain.Invalid(field+".price", "must be a number, got %v", m["price"])
		}
		if !isMoney(price) {
			return nil, domain.Invalid(field+".price", "must be an amount with at most %d decimal places", maxMoneyScale)
		}
		if price.IsNegative() {
			return nil, domain.Invalid(field+".price", "must not be negative")
		}

		var image string
		if rawImage, present := m["image"]; present && rawImage != nil {
			s, ok := rawImage.(string)
			if !ok {
				return nil, domain.Invalid(field+".image", "must be a URI string")
			}
			if s = strings.TrimSpace(s); s != "" {
				if err := validate.Var(s, "uriref"); err != nil {
					return nil, domain.Invalid(field+".image", "must be a URI reference")
				}
			}
			image = s
		}

		items = append(items, domain.OrderItem{Name: name, Qty: qty, Price: price, Image: image})
	}
	return items, nil
}

func requiredString(m map[string]any, key, field string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", domain.Invalid(field, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", domain.Invalid(field, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", domain.Invalid(field, "is required")
	}
	return s, nil
}

// toDecimal accepts JSON numbers and numeric strings; anything else is not a price
func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		return parseMoneyText(x.String())
	case string:
		return parseMoneyText(strings.TrimSpace(x))
	default:
		return decimal.Zero, false
	}
}

func parseMoneyText(s string) (decimal.Decimal, bool) {
	if len(s) > maxMoneyText {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	return d, err == nil
}

// isMoney checks the exponent and digit count first, so Round never has to
// rescale an attacker-sized exponent
func isMoney(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -maxMoneyExponent || exp > maxMoneyExponent || d.NumDigits() > maxMoneyDigits {
		return false
	}
	return d.Equal(d.Round(maxMoneyScale))
}

func toQty(v any) (int64, bool) {
	var q int64
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 {
			return 0, false
		}
		q = int64(x)
	case int:
		q = int64(x)
	case int64:
		q = x
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		q = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		q = n
	default:
		return 0, false
	}
	return q, q > 0 && q <= math.MaxInt32
}
