package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/iliyamo/desk-booking/internal/logger"
)

// AuditLog appends one line per committed booking to a file.
type AuditLog struct {
    path string
    mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog { return &AuditLog{path: path} }

// Handle is a Handler for the events queue.
func (a *AuditLog) Handle(_ context.Context, body []byte) error {
    var ev BookingCommittedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
        return fmt.Errorf("mkdir: %w", err)
    }

    a.mu.Lock()
    defer a.mu.Unlock()
    f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open audit log: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Seat booked | user_id=%s | user=%q | unit=%q | table=%q | seat=%q | seat_id=%s | until=%s | released=[%s]",
        ev.CommittedAt.Format(time.RFC3339), ev.UserID, ev.UserName, ev.Unit, ev.TableName, ev.SeatLabel,
        ev.SeatID, ev.OccupiedUntil.Format(time.RFC3339), strings.Join(ev.ReleasedSeats, ","))
    if len(ev.FailedReleases) > 0 {
        line += fmt.Sprintf(" | release_failed=[%s]", strings.Join(ev.FailedReleases, ","))
    }
    if _, err := f.WriteString(line + "\n"); err != nil {
        return fmt.Errorf("write audit log: %w", err)
    }
    return nil
}

// SeatReleaser vacates seats a user still holds.  It returns the seat ids
// that could not be released.
type SeatReleaser interface {
    ReleaseSeats(ctx context.Context, callerID, keepSeatID string, seatIDs []string, now time.Time) ([]string, error)
}

// RetryPublisher re-enqueues a release request.
type RetryPublisher interface {
    PublishReleaseRetry(ctx context.Context, ev ReleaseRetryEvent) error
}

// ReleaseRetry handles seat.release.retry messages.  Seats that fail again
// are re-published with Attempt+1 until MaxAttempts, then given up on and
// logged; they expire at the next cutover anyway.
type ReleaseRetry struct {
    releaser    SeatReleaser
    publisher   RetryPublisher
    log         *logger.Logger
    now         func() time.Time
    MaxAttempts int
    Backoff     time.Duration
}

func NewReleaseRetry(releaser SeatReleaser, publisher RetryPublisher, log *logger.Logger) *ReleaseRetry {
    return &ReleaseRetry{
        releaser:    releaser,
        publisher:   publisher,
        log:         log,
        now:         time.Now,
        MaxAttempts: 5,
        Backoff:     2 * time.Second,
    }
}

// Handle is a Handler for the release retry queue.
func (r *ReleaseRetry) Handle(ctx context.Context, body []byte) error {
    var ev ReleaseRetryEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.UserID == "" || len(ev.SeatIDs) == 0 {
        return fmt.Errorf("release retry without user or seats")
    }

    failed, err := r.releaser.ReleaseSeats(ctx, ev.UserID, ev.KeepSeatID, ev.SeatIDs, r.now())
    if err != nil {
        // nothing was written for the unread seats; retry them all
        failed = ev.SeatIDs
        r.log.Warn("QUEUE", fmt.Sprintf("release retry for user=%s failed: %v", ev.UserID, err))
    }
    if len(failed) == 0 {
        r.log.LogQueue("RELEASED", "release-retry", fmt.Sprintf("user=%s seats=%v attempt=%d", ev.UserID, ev.SeatIDs, ev.Attempt))
        return nil
    }
    if ev.Attempt >= r.MaxAttempts || r.publisher == nil {
        r.log.Error("QUEUE", fmt.Sprintf("giving up releasing seats %v of user=%s after %d attempts", failed, ev.UserID, ev.Attempt))
        return nil
    }

    if !sleep(ctx, r.Backoff*time.Duration(ev.Attempt)) {
        return ctx.Err()
    }
    next := ev
    next.SeatIDs = failed
    next.Attempt++
    next.RequestedAt = r.now().UTC()
    return r.publisher.PublishReleaseRetry(ctx, next)
}
