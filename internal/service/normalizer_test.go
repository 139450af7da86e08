package service

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ordernotify/internal/domain"
)

// validRaw builds the body the storefront posts, decoded the way gin decodes it
func validRaw() map[string]any {
	return map[string]any{
		"customer": map[string]any{"name": "A", "email": "a@x.com"},
		"address":  "1 Main St",
		"items": []any{
			map[string]any{"name": "Widget", "qty": float64(2), "price": 9.99},
		},
		"total":   19.98,
		"channel": "chat",
	}
}

func TestNewOrderID_Format(t *testing.T) {
	re := regexp.MustCompile(`^ORD-[0-9A-F]{10}$`)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewOrderID()
		if !re.MatchString(id) {
			t.Fatalf("bad id %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d calls", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestNormalize_Valid(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 8, 30, 0, 0, time.FixedZone("X", 3*3600))
	n := NewNormalizer(zap.NewNop(), WithIDGenerator(func() string { return "ORD-0000000001" }), WithClock(func() time.Time { return fixed }))

	raw := validRaw()
	// client-supplied identity is ignored
	raw["orderId"] = "ORD-CLIENT"
	raw["timestamp"] = "1999-01-01T00:00:00Z"

	o, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if o.OrderID != "ORD-0000000001" {
		t.Fatalf("orderId not generated: %s", o.OrderID)
	}
	if !o.Timestamp.Equal(fixed) || o.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp: %v", o.Timestamp)
	}
	if o.Channel != domain.ChannelChat {
		t.Fatalf("channel: %s", o.Channel)
	}
	if len(o.Items) != 1 || o.Items[0].Qty != 2 || o.Items[0].Price.String() != "9.99" {
		t.Fatalf("items: %+v", o.Items)
	}
	if o.Total.StringFixed(2) != "19.98" {
		t.Fatalf("total: %s", o.Total)
	}
}

func TestNormalize_FieldErrors(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	cases := []struct {
		name  string
		edit  func(m map[string]any)
		field string
	}{
		{"no customer", func(m map[string]any) { delete(m, "customer") }, "customer.name"},
		{"blank name", func(m map[string]any) { m["customer"] = map[string]any{"name": "  ", "email": "a@x.com"} }, "customer.name"},
		{"no email", func(m map[string]any) { m["customer"] = map[string]any{"name": "A"} }, "customer.email"},
		{"no address", func(m map[string]any) { delete(m, "address") }, "address"},
		{"empty items", func(m map[string]any) { m["items"] = []any{} }, "items"},
		{"items not list", func(m map[string]any) { m["items"] = "x" }, "items"},
		{"zero qty", func(m map[string]any) { m["items"] = []any{map[string]any{"name": "W", "qty": float64(0), "price": 1.0}} }, "items[0].qty"},
		{"fractional qty", func(m map[string]any) { m["items"] = []any{map[string]any{"name": "W", "qty": 1.5, "price": 1.0}} }, "items[0].qty"},
		{"bad price", func(m map[string]any) { m["items"] = []any{map[string]any{"name": "W", "qty": float64(1), "price": "abc"}} }, "items[0].price"},
		{"negative price", func(m map[string]any) { m["items"] = []any{map[string]any{"name": "W", "qty": float64(1), "price": -1.0}} }, "items[0].price"},
		{"bad image", func(m map[string]any) {
			m["items"] = []any{map[string]any{"name": "W", "qty": float64(1), "price": 1.0, "image": "assets/img/a\nb.jpg"}}
		}, "items[0].image"},
		{"no total", func(m map[string]any) { delete(m, "total") }, "total"},
		{"huge exponent price", func(m map[string]any) {
			m["items"] = []any{map[string]any{"name": "W", "qty": float64(1), "price": "1e20000000"}}
		}, "items[0].price"},
		{"tiny exponent price", func(m map[string]any) {
			m["items"] = []any{map[string]any{"name": "W", "qty": float64(1), "price": json.Number("1e-2147483000")}}
		}, "items[0].price"},
		{"long price text", func(m map[string]any) {
			m["items"] = []any{map[string]any{"name": "W", "qty": float64(1), "price": "1" + strings.Repeat("0", 5000)}}
		}, "items[0].price"},
		{"huge exponent total", func(m map[string]any) { m["total"] = "9e999999999" }, "total"},
		{"sub-cent total", func(m map[string]any) { m["total"] = "19.98001" }, "total"},
		{"huge qty", func(m map[string]any) {
			m["items"] = []any{map[string]any{"name": "W", "qty": json.Number("9223372036854775807"), "price": 1.0}}
		}, "items[0].qty"},
		{"no channel", func(m map[string]any) { delete(m, "channel") }, "channel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			tc.edit(raw)
			_, err := n.Normalize(raw)
			var de *domain.Error
			if !errors.As(err, &de) {
				t.Fatalf("expected *domain.Error, got %v", err)
			}
			if de.Kind != domain.KindRejectedInput || de.Field != tc.field {
				t.Fatalf("got kind=%s field=%s, want field %s", de.Kind, de.Field, tc.field)
			}
		})
	}
}

func TestNormalize_FirstInvalidFieldWins(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	raw := validRaw()
	delete(raw, "address")
	delete(raw, "channel")
	_, err := n.Normalize(raw)
	var de *domain.Error
	if !errors.As(err, &de) || de.Field != "address" {
		t.Fatalf("expected address error first, got %v", err)
	}
}

func TestNormalize_PriceCoercion(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	raw := validRaw()
	raw["items"] = []any{
		map[string]any{"name": "A", "qty": "3", "price": "1.10"},
		map[string]any{"name": "B", "qty": json.Number("1"), "price": json.Number("0.2")},
	}
	raw["total"] = "3.50"
	o, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if o.Items[0].Qty != 3 || o.Items[0].Price.StringFixed(2) != "1.10" {
		t.Fatalf("item 0: %+v", o.Items[0])
	}
	if !o.ItemsTotal().Equal(o.Total) {
		t.Fatalf("items total %s != total %s", o.ItemsTotal(), o.Total)
	}
}

func TestNormalize_ChannelCase(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	for in, want := range map[string]domain.Channel{
		"EMAIL":    domain.ChannelEmail,
		"WhatsApp": domain.ChannelChat,
		"fax":      domain.Channel("fax"),
	} {
		raw := validRaw()
		raw["channel"] = in
		o, err := n.Normalize(raw)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if o.Channel != want {
			t.Fatalf("%s: got %s want %s", in, o.Channel, want)
		}
	}
}

func TestNormalize_TotalMismatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	raw := validRaw()
	raw["total"] = 25.0

	lenient := NewNormalizer(zap.New(core))
	if _, err := lenient.Normalize(raw); err != nil {
		t.Fatalf("lenient normalize: %v", err)
	}
	if logs.FilterMessage("Order total differs from items subtotal").Len() != 1 {
		t.Fatalf("expected mismatch warning, got %v", logs.All())
	}

	strict := NewNormalizer(zap.NewNop(), WithStrictTotal(true))
	_, err := strict.Normalize(raw)
	var de *domain.Error
	if !errors.As(err, &de) || de.Field != "total" {
		t.Fatalf("expected total error, got %v", err)
	}
	if !strings.Contains(de.Detail, "19.98") {
		t.Fatalf("detail should name the subtotal: %s", de.Detail)
	}
}

func TestNormalize_RelativeImage(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	raw := validRaw()
	raw["channel"] = "email"
	raw["items"] = []any{
		map[string]any{"name": "MacBook", "qty": float64(1), "price": "19.98", "image": "assets/img/macbook.jpg"},
	}
	o, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if o.Items[0].Image != "assets/img/macbook.jpg" {
		t.Fatalf("image: %q", o.Items[0].Image)
	}
}

func TestNormalize_HostileAmountsReturnQuickly(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	for _, price := range []string{"1e20000000", "1e2147483647", "-1e-2147483647"} {
		raw := validRaw()
		raw["items"] = []any{map[string]any{"name": "W", "qty": float64(1), "price": price}}
		start := time.Now()
		_, err := n.Normalize(raw)
		if err == nil {
			t.Fatalf("%s: expected rejection", price)
		}
		if d := time.Since(start); d > time.Second {
			t.Fatalf("%s: took %s", price, d)
		}
	}
}

func TestNormalize_MoneyScale(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	raw := validRaw()
	raw["items"] = []any{map[string]any{"name": "W", "qty": float64(2), "price": "9.990000"}}
	raw["total"] = "19.9800"
	o, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("trailing zeros should be accepted: %v", err)
	}
	if o.Items[0].Price.StringFixed(2) != "9.99" {
		t.Fatalf("price: %s", o.Items[0].Price)
	}
}
