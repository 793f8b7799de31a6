// Package service publishes booking events to RabbitMQ.  Errors are
// logged and returned; callers decide whether to ignore them.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/desk-booking/internal/booking"
    "github.com/iliyamo/desk-booking/internal/logger"
    q "github.com/iliyamo/desk-booking/internal/queue"
)

// Publisher dials the broker per message.  Bookings are rare enough that
// a pooled channel is not worth its reconnect handling.
type Publisher struct {
    url         string
    eventsQueue string
    retryQueue  string
    log         *logger.Logger
    now         func() time.Time
}

var (
    _ booking.Notifier = (*Publisher)(nil)
    _ q.RetryPublisher = (*Publisher)(nil)
)

func NewPublisher(url, eventsQueue, retryQueue string, log *logger.Logger) *Publisher {
    return &Publisher{url: url, eventsQueue: eventsQueue, retryQueue: retryQueue, log: log, now: time.Now}
}

// BookingCommitted publishes the audit event of a committed rebook.
func (p *Publisher) BookingCommitted(ctx context.Context, caller booking.Identity, snap booking.Snapshot) error {
    return p.publish(ctx, p.eventsQueue, q.NewBookingCommittedEvent(caller, snap, p.now()))
}

// ReleaseIncomplete schedules the release of the seats a rebook left held.
func (p *Publisher) ReleaseIncomplete(ctx context.Context, caller booking.Identity, snap booking.Snapshot) error {
    if len(snap.FailedReleases) == 0 {
        return nil
    }
    return p.PublishReleaseRetry(ctx, q.NewReleaseRetryEvent(caller, snap, p.now()))
}

// PublishReleaseRetry enqueues a release retry request.
func (p *Publisher) PublishReleaseRetry(ctx context.Context, ev q.ReleaseRetryEvent) error {
    return p.publish(ctx, p.retryQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Error("QUEUE", fmt.Sprintf("rabbitmq dial failed: %v", err))
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Error("QUEUE", fmt.Sprintf("rabbitmq channel open failed: %v", err))
        return err
    }
    defer func() { _ = ch.Close() }()

    // durable, so messages survive broker restarts
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        p.log.Error("QUEUE", fmt.Sprintf("rabbitmq queue declare %s failed: %v", queue, err))
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    p.now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        p.log.Error("QUEUE", fmt.Sprintf("rabbitmq publish to %s failed: %v", queue, err))
        return err
    }
    p.log.LogQueue("PUBLISH", queue, fmt.Sprintf("%d bytes", len(body)))
    return nil
}
