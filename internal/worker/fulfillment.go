package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/repository"
	"github.com/voltmart/storefront-api/internal/store"
)

const (
	orderQueueName = "orders"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
	idempotencyTTL = 24 * time.Hour
)

// idempotencyStore is the slice of the redis API the worker needs for its
// dedup keys. *redis.Client satisfies it.
type idempotencyStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// FulfillmentWorker picks committed orders off the queue and moves them from
// pending to processing. Stock already moved synchronously at checkout, so
// the worker only touches the orders collection.
type FulfillmentWorker struct {
	channel   *amqp.Channel
	orderRepo repository.OrderRepository
	sections  *store.Sections
	keys      idempotencyStore
	log       *slog.Logger
	done      chan struct{}
}

func NewFulfillmentWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	sections *store.Sections,
	redisClient *redis.Client,
	log *slog.Logger,
) *FulfillmentWorker {
	w := &FulfillmentWorker{
		channel:   ch,
		orderRepo: orderRepo,
		sections:  sections,
		log:       log,
		done:      make(chan struct{}),
	}
	if redisClient != nil {
		w.keys = redisClient
	}
	return w
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, orderQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(orderQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": orderQueueName,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *FulfillmentWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("fulfillment worker started")
	return nil
}

func (w *FulfillmentWorker) Stop() { close(w.done) }

// processMessage handles one delivery. The idempotency key is written only
// after pickUp succeeds, never on the failure path: a dead-lettered message
// must still be able to advance the order when the DLQ is replayed.
func (w *FulfillmentWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var orderMsg model.OrderMessage
	if err := json.Unmarshal(msg.Body, &orderMsg); err != nil {
		w.log.Error("unmarshal order message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", orderMsg.OrderID, "user_id", orderMsg.UserID)

	idempotencyKey := "order_fulfilled:" + orderMsg.OrderID.String()
	if w.keys != nil {
		exists, err := w.keys.Exists(ctx, idempotencyKey).Result()
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if exists > 0 {
			log.Info("order already picked up, skipping")
			_ = msg.Ack(false)
			return
		}
	}

	if err := w.pickUp(ctx, orderMsg.OrderID); err != nil {
		log.Error("pick up order", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if w.keys != nil {
		if err := w.keys.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}
	_ = msg.Ack(false)
	log.Info("order moved to processing")
}

// pickUp advances a pending order to processing under the orders section.
// Orders the admin already moved (or cancelled) are left alone, which also
// makes redelivery harmless.
func (w *FulfillmentWorker) pickUp(ctx context.Context, orderID uuid.UUID) error {
	release, err := w.sections.Acquire(ctx, store.Orders)
	if err != nil {
		return err
	}
	defer release()

	order, err := w.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", orderID)
	}
	if order.Status != model.OrderStatusPending {
		return nil
	}

	order.Status = model.OrderStatusProcessing
	order.UpdatedAt = time.Now().UTC()
	if err := w.orderRepo.Update(ctx, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}
