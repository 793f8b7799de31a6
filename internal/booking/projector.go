package booking

import (
	"sort"
	"time"

	"github.com/iliyamo/desk-booking/internal/model"
)

// SeatState is what a caller can do with a seat.
type SeatState string

const (
	StateFree        SeatState = "FREE"
	StateHeldBySelf  SeatState = "HELD_BY_SELF"
	StateHeldByOther SeatState = "HELD_BY_OTHER"
)

// SeatView is the caller-specific rendering of one reservation row.  It
// never carries another user's identifier; only their display name.
type SeatView struct {
	SeatID           string     `json:"seat_id"`
	TableID          string     `json:"table_id"`
	TableName        string     `json:"table"`
	Label            string     `json:"label"`
	Row              int        `json:"row"`
	Column           int        `json:"column"`
	State            SeatState  `json:"state"`
	Selected         bool       `json:"selected"`
	OwnerDisplayName string     `json:"owner_name,omitempty"`
	OccupiedSince    *time.Time `json:"occupied_since,omitempty"`
	OccupiedUntil    *time.Time `json:"occupied_until,omitempty"`
}

// ProjectOne derives the view of a single reservation at now.
func ProjectOne(r model.Reservation, callerID, selectedSeatID string, now time.Time) SeatView {
	v := SeatView{
		SeatID:    r.SeatID,
		TableID:   r.TableID,
		TableName: r.TableName,
		Label:     r.Label,
		Row:       r.Row,
		Column:    r.Column,
		State:     StateFree,
	}
	if !r.ActiveAt(now) {
		v.Selected = selectedSeatID != "" && selectedSeatID == r.SeatID
		return v
	}
	since, until := r.OccupiedSince, r.OccupiedUntil
	v.OccupiedSince, v.OccupiedUntil = &since, &until
	if r.HeldBy(callerID, now) {
		v.State = StateHeldBySelf
		return v
	}
	v.State = StateHeldByOther
	v.OwnerDisplayName = r.OwnerDisplayName
	return v
}

// Project maps every reservation to its view keyed by seat id.  It keeps
// no state between calls; callers re-run it with a fresh now on every
// read.
func Project(rs []model.Reservation, callerID, selectedSeatID string, now time.Time) map[string]SeatView {
	out := make(map[string]SeatView, len(rs))
	for _, r := range rs {
		out[r.SeatID] = ProjectOne(r, callerID, selectedSeatID, now)
	}
	return out
}

// TableView groups the seats of one table in grid order.
type TableView struct {
	TableID   string     `json:"table_id"`
	TableName string     `json:"table"`
	Seats     []SeatView `json:"seats"`
}

// GroupByTable orders views by table name, row and column.
func GroupByTable(views map[string]SeatView) []TableView {
	flat := make([]SeatView, 0, len(views))
	for _, v := range views {
		flat = append(flat, v)
	}
	sort.Slice(flat, func(i, j int) bool {
		a, b := flat[i], flat[j]
		if a.TableName != b.TableName {
			return a.TableName < b.TableName
		}
		if a.TableID != b.TableID {
			return a.TableID < b.TableID
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Column < b.Column
	})
	var tables []TableView
	for _, v := range flat {
		if n := len(tables); n == 0 || tables[n-1].TableID != v.TableID {
			tables = append(tables, TableView{TableID: v.TableID, TableName: v.TableName})
		}
		last := &tables[len(tables)-1]
		last.Seats = append(last.Seats, v)
	}
	return tables
}
