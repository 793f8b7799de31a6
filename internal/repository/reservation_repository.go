package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/desk-booking/internal/booking"
	"github.com/iliyamo/desk-booking/internal/model"
)

// ReservationRepo is the MySQL implementation of booking.Store.  Each
// statement touches the rows matching one filter; nothing spans more than
// one statement.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

var _ booking.Store = (*ReservationRepo)(nil)

// filter fields and sort keys mapped to their columns.  Anything not
// listed here is rejected before it reaches SQL.
var filterColumns = map[string]string{
	booking.FieldSeatID:  "seat_id",
	booking.FieldOwnerID: "owner_id",
	booking.FieldUnit:    "unit",
	booking.FieldTableID: "table_id",
}

var sortColumns = map[string]string{
	booking.FieldSeatID:   "seat_id",
	booking.FieldOwnerID:  "owner_id",
	booking.FieldUnit:     "unit",
	booking.FieldTableID:  "table_id",
	booking.SortTableName: "table_name",
	booking.SortRow:       "row_no",
	booking.SortColumn:    "col_no",
	booking.SortLabel:     "label",
}

const reservationColumns = `seat_id, unit, table_id, table_name, row_no, col_no, label,
	owner_id, owner_display_name, occupied_since, occupied_until`

// whereClause renders filter as "WHERE a = ? AND b = ?" with keys in a
// stable order.
func whereClause(filter booking.Filter) (string, []any, error) {
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}
	if len(filter) == 0 {
		return "", nil, nil
	}
	var conds []string
	var args []any
	for _, field := range []string{booking.FieldSeatID, booking.FieldOwnerID, booking.FieldUnit, booking.FieldTableID} {
		v, ok := filter[field]
		if !ok {
			continue
		}
		conds = append(conds, filterColumns[field]+" = ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// orderClause orders by the requested key and then by seat position so
// pages are deterministic.
func orderClause(s booking.Sort) (string, error) {
	tail := "table_name, row_no, col_no, seat_id"
	if s.Field == "" {
		return " ORDER BY " + tail, nil
	}
	col, ok := sortColumns[s.Field]
	if !ok {
		return "", fmt.Errorf("%w: unknown sort field %q", booking.ErrInvalidFilter, s.Field)
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s", col, dir, tail), nil
}

// setClause renders the non-nil fields of a patch.
func setClause(p booking.Patch) (string, []any) {
	var sets []string
	var args []any
	if p.OwnerID != nil {
		sets = append(sets, "owner_id = ?")
		args = append(args, *p.OwnerID)
	}
	if p.OwnerDisplayName != nil {
		sets = append(sets, "owner_display_name = ?")
		args = append(args, *p.OwnerDisplayName)
	}
	if p.OccupiedSince != nil {
		sets = append(sets, "occupied_since = ?")
		args = append(args, p.OccupiedSince.UTC())
	}
	if p.OccupiedUntil != nil {
		sets = append(sets, "occupied_until = ?")
		args = append(args, p.OccupiedUntil.UTC())
	}
	return strings.Join(sets, ", "), args
}

// ListReservations returns one page of rows matching filter and the
// total count.
func (r *ReservationRepo) ListReservations(ctx context.Context, filter booking.Filter, sort booking.Sort, page booking.Page) (booking.ListResult, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return booking.ListResult{}, err
	}
	order, err := orderClause(sort)
	if err != nil {
		return booking.ListResult{}, err
	}
	if page.Size <= 0 {
		page.Size = 100
	}
	if page.No <= 0 {
		page.No = 1
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations"+where, args...).Scan(&total); err != nil {
		return booking.ListResult{}, err
	}

	q := "SELECT " + reservationColumns + " FROM reservations" + where + order + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, page.Size, (page.No-1)*page.Size)...)
	if err != nil {
		return booking.ListResult{}, err
	}
	defer rows.Close()

	out := booking.ListResult{TotalCount: total}
	for rows.Next() {
		var m model.Reservation
		if err := rows.Scan(&m.SeatID, &m.Unit, &m.TableID, &m.TableName, &m.Row, &m.Column, &m.Label,
			&m.OwnerID, &m.OwnerDisplayName, &m.OccupiedSince, &m.OccupiedUntil); err != nil {
			return booking.ListResult{}, err
		}
		m.OccupiedSince = m.OccupiedSince.UTC()
		m.OccupiedUntil = m.OccupiedUntil.UTC()
		out.Items = append(out.Items, m)
	}
	return out, rows.Err()
}

// UpdateReservation writes patch to every row matching filter.  An empty
// filter is refused so a bug can never rewrite the whole table.
func (r *ReservationRepo) UpdateReservation(ctx context.Context, filter booking.Filter, patch booking.Patch) (bool, error) {
	if len(filter) == 0 {
		return false, fmt.Errorf("%w: update without filter", booking.ErrInvalidFilter)
	}
	if patch.Empty() {
		return false, nil
	}
	where, wargs, err := whereClause(filter)
	if err != nil {
		return false, err
	}
	set, sargs := setClause(patch)
	res, err := r.db.ExecContext(ctx, "UPDATE reservations SET "+set+where, append(sargs, wargs...)...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertReservation adds the row of a newly provisioned seat and returns
// its seat id.
func (r *ReservationRepo) InsertReservation(ctx context.Context, m model.Reservation) (string, error) {
	const q = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, m.SeatID, m.Unit, m.TableID, m.TableName, m.Row, m.Column, m.Label,
		m.OwnerID, m.OwnerDisplayName, m.OccupiedSince.UTC(), m.OccupiedUntil.UTC())
	if err != nil {
		if isDuplicate(err) {
			return "", ErrConflict
		}
		return "", err
	}
	return m.SeatID, nil
}

// DeleteReservation removes every row matching filter.
func (r *ReservationRepo) DeleteReservation(ctx context.Context, filter booking.Filter) (bool, error) {
	if len(filter) == 0 {
		return false, fmt.Errorf("%w: delete without filter", booking.ErrInvalidFilter)
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM reservations"+where, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
