package queue

import (
    "context"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/desk-booking/internal/logger"
)

// Handler processes one delivery body.  A nil return acks the message;
// an error rejects it without requeueing.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads one durable queue and hands every delivery to a Handler.
// It reconnects with exponential backoff until ctx is cancelled.
type Consumer struct {
    url      string
    queue    string
    handler  Handler
    log      *logger.Logger
    prefetch int
}

func NewConsumer(url, queue string, handler Handler, log *logger.Logger) *Consumer {
    return &Consumer{url: url, queue: queue, handler: handler, log: log, prefetch: 50}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("QUEUE", fmt.Sprintf("%s: dial failed: %v; retrying in %s", c.queue, err, backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("QUEUE", fmt.Sprintf("%s: consume loop ended: %v; reconnecting", c.queue, err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(c.prefetch, 0, false); err != nil {
        c.log.Warn("QUEUE", fmt.Sprintf("%s: set QoS failed: %v", c.queue, err))
    }
    if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.log.LogQueue("CONSUME", c.queue, "consumer started")

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handler(ctx, d.Body); err != nil {
                c.log.Error("QUEUE", fmt.Sprintf("%s: handle message failed: %v", c.queue, err))
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
