// Package queue defines the messages exchanged over RabbitMQ and the
// consumers that process them.
package queue

import (
    "time"

    "github.com/iliyamo/desk-booking/internal/booking"
)

// BookingCommittedEvent is published after a rebook commits.  It carries
// enough to write the audit trail without reading the reservation table.
type BookingCommittedEvent struct {
    UserID         string    `json:"user_id"`
    UserName       string    `json:"user_name"`
    Unit           string    `json:"unit"`
    SeatID         string    `json:"seat_id"`
    TableName      string    `json:"table"`
    SeatLabel      string    `json:"seat"`
    OccupiedSince  time.Time `json:"occupied_since"`
    OccupiedUntil  time.Time `json:"occupied_until"`
    ReleasedSeats  []string  `json:"released_seats,omitempty"`
    FailedReleases []string  `json:"failed_releases,omitempty"`
    CommittedAt    time.Time `json:"committed_at"`
}

// ReleaseRetryEvent asks the retry consumer to vacate seats a committed
// rebook could not release.  KeepSeatID is the seat the user now holds
// and is never released.
type ReleaseRetryEvent struct {
    UserID      string    `json:"user_id"`
    KeepSeatID  string    `json:"keep_seat_id"`
    SeatIDs     []string  `json:"seat_ids"`
    Attempt     int       `json:"attempt"`
    RequestedAt time.Time `json:"requested_at"`
}

// NewBookingCommittedEvent builds the audit event of a snapshot.
func NewBookingCommittedEvent(caller booking.Identity, snap booking.Snapshot, at time.Time) BookingCommittedEvent {
    ev := BookingCommittedEvent{
        UserID:         caller.ID,
        UserName:       caller.DisplayName,
        Unit:           snap.Claimed.Unit,
        SeatID:         snap.Claimed.SeatID,
        TableName:      snap.Claimed.TableName,
        SeatLabel:      snap.Claimed.Label,
        OccupiedSince:  snap.Claimed.OccupiedSince,
        OccupiedUntil:  snap.Claimed.OccupiedUntil,
        FailedReleases: snap.FailedReleases,
        CommittedAt:    at.UTC(),
    }
    for _, r := range snap.Released {
        ev.ReleasedSeats = append(ev.ReleasedSeats, r.SeatID)
    }
    return ev
}

// NewReleaseRetryEvent builds the first retry request of a snapshot.
func NewReleaseRetryEvent(caller booking.Identity, snap booking.Snapshot, at time.Time) ReleaseRetryEvent {
    return ReleaseRetryEvent{
        UserID:      caller.ID,
        KeepSeatID:  snap.Claimed.SeatID,
        SeatIDs:     append([]string(nil), snap.FailedReleases...),
        Attempt:     1,
        RequestedAt: at.UTC(),
    }
}
