package model

import "time"

// VacatedAt is the occupied_until value written when a seat is released.
var VacatedAt = time.Unix(0, 0).UTC()

// Reservation is the mutable ownership record attached to a seat.  There
// is exactly one reservation row per seat; booking a seat updates the row
// instead of inserting a new one.
//
// Fields:
//  Seat             – the seat this row belongs to.
//  OwnerID          – identifier of the holder, empty when unowned.
//  OwnerDisplayName – name shown to other users.
//  OccupiedSince    – when the current booking was made.
//  OccupiedUntil    – end of the booking; the row is active while it is in the future.
type Reservation struct {
    Seat
    OwnerID          string    // reservations.owner_id
    OwnerDisplayName string    // reservations.owner_display_name
    OccupiedSince    time.Time // reservations.occupied_since
    OccupiedUntil    time.Time // reservations.occupied_until
}

// ActiveAt reports whether the reservation occupies its seat at now.
func (r Reservation) ActiveAt(now time.Time) bool {
    return r.OccupiedUntil.After(now)
}

// HeldBy reports whether ownerID holds the seat at now.  An empty owner
// never holds anything.
func (r Reservation) HeldBy(ownerID string, now time.Time) bool {
    return ownerID != "" && r.OwnerID == ownerID && r.ActiveAt(now)
}
