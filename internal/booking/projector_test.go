package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/desk-booking/internal/model"
)

func TestProjectOne(t *testing.T) {
	now := at(9, 0)
	until := at(10, 0)

	t.Run("vacated seat is free", func(t *testing.T) {
		v := ProjectOne(seat("s1", "t1", "chair-1"), "alice", "", now)
		assert.Equal(t, StateFree, v.State)
		assert.Nil(t, v.OccupiedUntil)
		assert.Empty(t, v.OwnerDisplayName)
	})

	t.Run("own seat", func(t *testing.T) {
		v := ProjectOne(heldSeat("s1", "t1", "chair-1", "alice", "Alice", until), "alice", "", now)
		assert.Equal(t, StateHeldBySelf, v.State)
		require.NotNil(t, v.OccupiedUntil)
		assert.Equal(t, until, *v.OccupiedUntil)
	})

	t.Run("seat of another user shows only the name", func(t *testing.T) {
		v := ProjectOne(heldSeat("s1", "t1", "chair-1", "bob", "Bob", until), "alice", "", now)
		assert.Equal(t, StateHeldByOther, v.State)
		assert.Equal(t, "Bob", v.OwnerDisplayName)
	})

	t.Run("expired booking is free again", func(t *testing.T) {
		v := ProjectOne(heldSeat("s1", "t1", "chair-1", "bob", "Bob", until), "alice", "", until)
		assert.Equal(t, StateFree, v.State)
		assert.Empty(t, v.OwnerDisplayName)
	})

	t.Run("anonymous caller never holds a seat", func(t *testing.T) {
		r := heldSeat("s1", "t1", "chair-1", "", "", until)
		v := ProjectOne(r, "", "", now)
		assert.Equal(t, StateHeldByOther, v.State)
	})

	t.Run("selection marks only free seats", func(t *testing.T) {
		assert.True(t, ProjectOne(seat("s1", "t1", "chair-1"), "alice", "s1", now).Selected)
		assert.False(t, ProjectOne(seat("s2", "t1", "chair-2"), "alice", "s1", now).Selected)
		assert.False(t, ProjectOne(heldSeat("s1", "t1", "chair-1", "bob", "Bob", until), "alice", "s1", now).Selected)
	})
}

func TestProjectRecomputesWithNow(t *testing.T) {
	until := at(10, 0)
	rs := []model.Reservation{
		heldSeat("s1", "t1", "chair-1", "bob", "Bob", until),
		seat("s2", "t1", "chair-2"),
	}
	before := Project(rs, "alice", "", at(9, 59))
	after := Project(rs, "alice", "", at(10, 0))

	assert.Equal(t, StateHeldByOther, before["s1"].State)
	assert.Equal(t, StateFree, after["s1"].State)
	assert.Equal(t, StateFree, after["s2"].State)
	assert.Len(t, after, 2)
}

func TestGroupByTable(t *testing.T) {
	mk := func(id, table string, row, col int) SeatView {
		return SeatView{SeatID: id, TableID: table, TableName: table, Row: row, Column: col}
	}
	views := map[string]SeatView{
		"d": mk("d", "table-2", 0, 0),
		"c": mk("c", "table-1", 1, 0),
		"b": mk("b", "table-1", 0, 1),
		"a": mk("a", "table-1", 0, 0),
	}
	tables := GroupByTable(views)
	require.Len(t, tables, 2)
	assert.Equal(t, "table-1", tables[0].TableName)
	var ids []string
	for _, v := range tables[0].Seats {
		ids = append(ids, v.SeatID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "d", tables[1].Seats[0].SeatID)
}
