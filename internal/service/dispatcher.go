package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ordernotify/internal/domain"
	"ordernotify/internal/metrics"
	"ordernotify/internal/notify"
	"ordernotify/internal/repository"
)

// State состояние обработки заказа
type State string

const (
	StateReceived        State = "Received"
	StateNormalized      State = "Normalized"
	StatePersisted       State = "Persisted"
	StateDispatching     State = "Dispatching"
	StateCompleted       State = "Completed"
	StatePartiallyFailed State = "PartiallyFailed"
	StateRejectedInput   State = "RejectedInput"
	StateStorageError    State = "StorageError"
)

// Result итог обработки. Stored=true означает, что заказ записан в хранилище,
// независимо от исхода уведомления.
type Result struct {
	State   State
	OrderID string
	Stored  bool
	Channel domain.Channel
	// Err *domain.Error для всех состояний, кроме Completed
	Err error
}

// Dispatcher проводит заказ через Normalizer → Store → выбор канала → доставку
type Dispatcher struct {
	normalizer *Normalizer
	store      repository.OrderStore
	email      notify.Channel
	chat       notify.Channel
	logger     *zap.Logger
	metrics    *metrics.Registry
}

func NewDispatcher(normalizer *Normalizer, store repository.OrderStore, email, chat notify.Channel, logger *zap.Logger, m *metrics.Registry) *Dispatcher {
	return &Dispatcher{
		normalizer: normalizer,
		store:      store,
		email:      email,
		chat:       chat,
		logger:     logger,
		metrics:    m,
	}
}

func (d *Dispatcher) channelFor(c domain.Channel) (notify.Channel, bool) {
	switch c {
	case domain.ChannelEmail:
		return d.email, true
	case domain.ChannelChat:
		return d.chat, true
	default:
		return nil, false
	}
}

// Submit обрабатывает один заказ синхронно. Ошибки уведомления не пробрасываются
// как сбой: они возвращаются в Result вместе с признаком сохранения.
func (d *Dispatcher) Submit(ctx context.Context, raw map[string]any) Result {
	d.metrics.Received.Inc()

	order, err := d.normalizer.Normalize(raw)
	if err != nil {
		d.metrics.Rejected.WithLabelValues("invalid_input").Inc()
		d.logger.Info("Order rejected", zap.String("state", string(StateRejectedInput)), zap.Error(err))
		return Result{State: StateRejectedInput, Err: err}
	}

	if err := d.store.Save(ctx, order); err != nil {
		d.metrics.Rejected.WithLabelValues("storage_error").Inc()
		d.logger.Error("Failed to save order",
			zap.String("order_id", order.OrderID),
			zap.String("state", string(StateStorageError)),
			zap.Error(err))
		return Result{
			State: StateStorageError,
			Err:   &domain.Error{Kind: domain.KindStorageError, Detail: err.Error(), Err: err},
		}
	}
	d.metrics.Stored.Inc()
	res := Result{State: StatePersisted, OrderID: order.OrderID, Stored: true, Channel: order.Channel}

	ch, ok := d.channelFor(order.Channel)
	if !ok {
		// stored on purpose: the order exists even though nobody is notified
		d.metrics.Rejected.WithLabelValues("invalid_channel").Inc()
		d.logger.Warn("Order stored with unknown channel",
			zap.String("order_id", order.OrderID),
			zap.String("channel", string(order.Channel)),
			zap.String("state", string(StateRejectedInput)))
		res.State = StateRejectedInput
		res.Err = domain.Invalid("channel", "Invalid channel")
		return res
	}

	res.State = StateDispatching
	// delivery is not cancelled if the caller goes away; the channel timeout bounds it
	start := time.Now()
	err = ch.Deliver(context.WithoutCancel(ctx), order)
	d.metrics.DeliveryLatency.WithLabelValues(string(order.Channel)).Observe(time.Since(start).Seconds())

	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.Wrap(domain.KindDeliveryFailed, err)
		}
		d.metrics.Deliveries.WithLabelValues(string(order.Channel), string(domain.KindOf(err))).Inc()
		d.logger.Error("Order stored but notification failed",
			zap.String("order_id", order.OrderID),
			zap.String("channel", string(order.Channel)),
			zap.String("state", string(StatePartiallyFailed)),
			zap.Error(err))
		res.State = StatePartiallyFailed
		res.Err = err
		return res
	}

	d.metrics.Deliveries.WithLabelValues(string(order.Channel), "ok").Inc()
	d.logger.Info("Order created successfully",
		zap.String("order_id", order.OrderID),
		zap.String("channel", string(order.Channel)),
		zap.String("total", order.Total.String()))
	res.State = StateCompleted
	return res
}

// GetOrder возвращает сохранённый заказ по orderId
func (d *Dispatcher) GetOrder(ctx context.Context, orderID string) (*domain.StoredOrder, error) {
	if orderID == "" {
		return nil, ErrInvalidInput
	}
	return d.store.GetByOrderID(ctx, orderID)
}

// ChannelStatus nil для настроенного канала, иначе ошибка ConfigurationMissing
func (d *Dispatcher) ChannelStatus() map[domain.Channel]error {
	return map[domain.Channel]error{
		domain.ChannelEmail: d.email.Ready(),
		domain.ChannelChat:  d.chat.Ready(),
	}
}

// Ping проверяет доступность хранилища
func (d *Dispatcher) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}
