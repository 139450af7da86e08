// Package notify delivers a stored order to the merchant. There are exactly two
// channels, email and chat; each makes a single delivery attempt bounded by its
// configured timeout.
package notify

import (
	"context"
	"strings"

	"ordernotify/internal/domain"
)

// Channel канал доставки уведомления о заказе
type Channel interface {
	Kind() domain.Channel
	// Deliver возвращает *domain.Error с классом ConfigurationMissing,
	// InvoiceGenerationFailed или DeliveryFailed
	Deliver(ctx context.Context, o *domain.Order) error
	// Ready nil, если все учётные данные заданы
	Ready() error
}

func missingConfig(names []string) error {
	if len(names) == 0 {
		return nil
	}
	return &domain.Error{
		Kind:   domain.KindConfigurationMissing,
		Detail: "missing " + strings.Join(names, ", "),
	}
}
