package booking

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/desk-booking/internal/model"
)

const maxTableSide = 20

// LayoutSeat is the immutable part of a seat.
type LayoutSeat struct {
	SeatID string `json:"seat_id"`
	Label  string `json:"label"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
}

// LayoutTable describes the grid of one table.
type LayoutTable struct {
	TableID   string       `json:"table_id"`
	TableName string       `json:"table"`
	Rows      int          `json:"rows"`
	Columns   int          `json:"columns"`
	Seats     []LayoutSeat `json:"seats"`
}

// Layout returns the tables of unit without occupancy.  It changes only
// when tables are provisioned or removed.
func (d *Desk) Layout(ctx context.Context, unit string) ([]LayoutTable, error) {
	rs, err := listAll(ctx, d.store, Filter{FieldUnit: unit}, Sort{Field: SortTableName}, defaultPageSize)
	if err != nil {
		return nil, networkError(err)
	}
	return buildLayout(rs), nil
}

func buildLayout(rs []model.Reservation) []LayoutTable {
	byID := make(map[string]*LayoutTable)
	var order []string
	for _, r := range rs {
		t := byID[r.TableID]
		if t == nil {
			t = &LayoutTable{TableID: r.TableID, TableName: r.TableName}
			byID[r.TableID] = t
			order = append(order, r.TableID)
		}
		t.Seats = append(t.Seats, LayoutSeat{SeatID: r.SeatID, Label: r.Label, Row: r.Row, Column: r.Column})
		if r.Row+1 > t.Rows {
			t.Rows = r.Row + 1
		}
		if r.Column+1 > t.Columns {
			t.Columns = r.Column + 1
		}
	}
	out := make([]LayoutTable, 0, len(order))
	for _, id := range order {
		t := byID[id]
		sort.Slice(t.Seats, func(i, j int) bool {
			if t.Seats[i].Row != t.Seats[j].Row {
				return t.Seats[i].Row < t.Seats[j].Row
			}
			return t.Seats[i].Column < t.Seats[j].Column
		})
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}

// ProvisionTable creates a rows x columns table of unowned seats in unit.
// Seats are labelled chair-1..chair-N in row-major order.  If an insert
// fails the seats already written are removed again.
func (d *Desk) ProvisionTable(ctx context.Context, unit string, rows, columns int) (LayoutTable, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" || rows < 1 || columns < 1 || rows > maxTableSide || columns > maxTableSide {
		return LayoutTable{}, ErrInvalidLayout
	}
	existing, err := d.Layout(ctx, unit)
	if err != nil {
		return LayoutTable{}, err
	}

	table := LayoutTable{
		TableID:   uuid.NewString(),
		TableName: nextTableName(existing),
		Rows:      rows,
		Columns:   columns,
	}
	n := 0
	for row := 0; row < rows; row++ {
		for col := 0; col < columns; col++ {
			n++
			res := model.Reservation{
				Seat: model.Seat{
					SeatID:    uuid.NewString(),
					Unit:      unit,
					TableID:   table.TableID,
					TableName: table.TableName,
					Row:       row,
					Column:    col,
					Label:     fmt.Sprintf("chair-%d", n),
				},
				OccupiedSince: model.VacatedAt,
				OccupiedUntil: model.VacatedAt,
			}
			id, err := d.store.InsertReservation(ctx, res)
			if err != nil {
				if _, derr := d.store.DeleteReservation(context.WithoutCancel(ctx), Filter{FieldTableID: table.TableID}); derr != nil {
					d.log.Error("BOOKING", fmt.Sprintf("cleanup of table %s failed: %v", table.TableID, derr))
				}
				return LayoutTable{}, networkError(err)
			}
			table.Seats = append(table.Seats, LayoutSeat{SeatID: id, Label: res.Label, Row: row, Column: col})
		}
	}
	d.log.LogBooking("TABLE_CREATE", table.TableID, fmt.Sprintf("unit=%s %s %dx%d", unit, table.TableName, rows, columns))
	return table, nil
}

// nextTableName numbers a new table one past the highest table-N in use,
// so a removed table never causes a duplicate name.
func nextTableName(existing []LayoutTable) string {
	highest := 0
	for _, t := range existing {
		n, err := strconv.Atoi(strings.TrimPrefix(t.TableName, "table-"))
		if err == nil && strings.HasPrefix(t.TableName, "table-") && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("table-%d", highest+1)
}

// RemoveTable deletes every seat of a table, including held ones.
func (d *Desk) RemoveTable(ctx context.Context, tableID string) error {
	if strings.TrimSpace(tableID) == "" {
		return ErrTableNotFound
	}
	ok, err := d.store.DeleteReservation(ctx, Filter{FieldTableID: tableID})
	if err != nil {
		return networkError(err)
	}
	if !ok {
		return ErrTableNotFound
	}
	d.log.LogBooking("TABLE_DELETE", tableID, "table removed")
	return nil
}
