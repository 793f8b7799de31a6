package model

// Seat describes a physical desk seat.  Seats are provisioned together
// with their table and never change afterwards; only an admin removing
// the whole table deletes them.
//
// Fields:
//  SeatID    – opaque stable identifier (uuid).
//  Unit      – business unit the table belongs to.
//  TableID   – identifier shared by every seat of a table.
//  TableName – display name of the table (e.g. table-3).
//  Row       – 0-based row within the table grid.
//  Column    – 0-based column within the table grid.
//  Label     – display label of the seat (e.g. chair-5).
type Seat struct {
    SeatID    string // reservations.seat_id
    Unit      string // reservations.unit
    TableID   string // reservations.table_id
    TableName string // reservations.table_name
    Row       int    // reservations.row_no
    Column    int    // reservations.col_no
    Label     string // reservations.label
}
