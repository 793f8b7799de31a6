package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/desk-booking/internal/model"
)

// Filter fields accepted by a Store.
const (
	FieldSeatID  = "seatId"
	FieldOwnerID = "ownerId"
	FieldUnit    = "unit"
	FieldTableID = "tableId"
)

// Sort fields accepted by a Store in addition to the filter fields.
const (
	SortTableName = "tableName"
	SortRow       = "row"
	SortColumn    = "column"
	SortLabel     = "label"
)

// Filter is a structured equality predicate: every key must equal its
// value.  An empty filter matches every row.
type Filter map[string]string

// Validate rejects unknown fields.
func (f Filter) Validate() error {
	for k := range f {
		switch k {
		case FieldSeatID, FieldOwnerID, FieldUnit, FieldTableID:
		default:
			return fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, k)
		}
	}
	return nil
}

// String renders the filter as the JSON object sent over the wire.
func (f Filter) String() string {
	b, err := json.Marshal(map[string]string(f))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Sort orders a listing by one field.
type Sort struct {
	Field string
	Desc  bool
}

// Page selects a 1-based page of Size items.
type Page struct {
	No   int
	Size int
}

// ListResult is one page of reservations plus the total number of rows
// matching the filter.
type ListResult struct {
	Items      []model.Reservation
	TotalCount int
}

// Patch lists the reservation columns an update writes.  Nil fields are
// left untouched.
type Patch struct {
	OwnerID          *string
	OwnerDisplayName *string
	OccupiedSince    *time.Time
	OccupiedUntil    *time.Time
}

// Empty reports whether the patch writes nothing.
func (p Patch) Empty() bool {
	return p.OwnerID == nil && p.OwnerDisplayName == nil && p.OccupiedSince == nil && p.OccupiedUntil == nil
}

// Apply returns r with the patch written over it.
func (p Patch) Apply(r model.Reservation) model.Reservation {
	if p.OwnerID != nil {
		r.OwnerID = *p.OwnerID
	}
	if p.OwnerDisplayName != nil {
		r.OwnerDisplayName = *p.OwnerDisplayName
	}
	if p.OccupiedSince != nil {
		r.OccupiedSince = *p.OccupiedSince
	}
	if p.OccupiedUntil != nil {
		r.OccupiedUntil = *p.OccupiedUntil
	}
	return r
}

// Store is the reservation table.  Each update is atomic for the rows it
// matches and nothing more; there is no multi-row transaction.
// UpdateReservation and DeleteReservation report whether any row matched.
type Store interface {
	ListReservations(ctx context.Context, filter Filter, sort Sort, page Page) (ListResult, error)
	UpdateReservation(ctx context.Context, filter Filter, patch Patch) (bool, error)
	InsertReservation(ctx context.Context, r model.Reservation) (string, error)
	DeleteReservation(ctx context.Context, filter Filter) (bool, error)
}

// listAll walks every page of a listing.
func listAll(ctx context.Context, s Store, filter Filter, sort Sort, pageSize int) ([]model.Reservation, error) {
	var out []model.Reservation
	for no := 1; ; no++ {
		res, err := s.ListReservations(ctx, filter, sort, Page{No: no, Size: pageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) < pageSize || len(out) >= res.TotalCount {
			return out, nil
		}
	}
}

// findSeat loads the reservation row of one seat.
func findSeat(ctx context.Context, s Store, seatID string) (model.Reservation, error) {
	res, err := s.ListReservations(ctx, Filter{FieldSeatID: seatID}, Sort{}, Page{No: 1, Size: 1})
	if err != nil {
		return model.Reservation{}, err
	}
	if len(res.Items) == 0 {
		return model.Reservation{}, ErrSeatNotFound
	}
	return res.Items[0], nil
}
