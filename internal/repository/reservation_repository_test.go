package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/desk-booking/internal/booking"
)

func TestWhereClauseStableOrder(t *testing.T) {
	where, args, err := whereClause(booking.Filter{
		booking.FieldOwnerID: "u1",
		booking.FieldSeatID:  "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, " WHERE seat_id = ? AND owner_id = ?", where)
	assert.Equal(t, []any{"s1", "u1"}, args)
}

func TestWhereClauseEmptyMatchesAll(t *testing.T) {
	where, args, err := whereClause(booking.Filter{})
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestWhereClauseRejectsUnknownField(t *testing.T) {
	_, _, err := whereClause(booking.Filter{"owner_id; DROP TABLE reservations": "x"})
	assert.True(t, errors.Is(err, booking.ErrInvalidFilter))
}

func TestOrderClause(t *testing.T) {
	order, err := orderClause(booking.Sort{})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY table_name, row_no, col_no, seat_id", order)

	order, err = orderClause(booking.Sort{Field: booking.SortLabel, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY label DESC, table_name, row_no, col_no, seat_id", order)

	_, err = orderClause(booking.Sort{Field: "password"})
	assert.True(t, errors.Is(err, booking.ErrInvalidFilter))
}

func TestSetClauseOnlyWritesGivenFields(t *testing.T) {
	owner := ""
	until := time.Unix(0, 0)
	set, args := setClause(booking.Patch{OwnerID: &owner, OccupiedUntil: &until})
	assert.Equal(t, "owner_id = ?, occupied_until = ?", set)
	require.Len(t, args, 2)
	assert.Equal(t, "", args[0])
	assert.Equal(t, time.UTC, args[1].(time.Time).Location())
}
