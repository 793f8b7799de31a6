package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/desk-booking/internal/model"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory Store with fault injection.
type memStore struct {
	mu   sync.Mutex
	rows map[string]model.Reservation

	updates     []Filter
	inserts     int
	listErr     error
	failUpdate  func(f Filter, p Patch) error
	failInsertN int // fail the n-th insert (1-based); 0 disables
	beforeClaim func()
}

func newMemStore(rs ...model.Reservation) *memStore {
	s := &memStore{rows: make(map[string]model.Reservation)}
	for _, r := range rs {
		s.rows[r.SeatID] = r
	}
	return s
}

func matches(r model.Reservation, f Filter) bool {
	for k, v := range f {
		var got string
		switch k {
		case FieldSeatID:
			got = r.SeatID
		case FieldOwnerID:
			got = r.OwnerID
		case FieldUnit:
			got = r.Unit
		case FieldTableID:
			got = r.TableID
		}
		if got != v {
			return false
		}
	}
	return true
}

func (s *memStore) ListReservations(_ context.Context, f Filter, _ Sort, p Page) (ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return ListResult{}, s.listErr
	}
	if err := f.Validate(); err != nil {
		return ListResult{}, err
	}
	var all []model.Reservation
	for _, r := range s.rows {
		if matches(r, f) {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TableName != all[j].TableName {
			return all[i].TableName < all[j].TableName
		}
		return all[i].Label < all[j].Label
	})
	start := (p.No - 1) * p.Size
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	return ListResult{Items: append([]model.Reservation(nil), all[start:end]...), TotalCount: len(all)}, nil
}

func (s *memStore) UpdateReservation(_ context.Context, f Filter, p Patch) (bool, error) {
	if s.beforeClaim != nil && p.OwnerDisplayName != nil {
		s.beforeClaim()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, f)
	if s.failUpdate != nil {
		if err := s.failUpdate(f, p); err != nil {
			return false, err
		}
	}
	matched := false
	for id, r := range s.rows {
		if matches(r, f) {
			s.rows[id] = p.Apply(r)
			matched = true
		}
	}
	return matched, nil
}

func (s *memStore) InsertReservation(_ context.Context, r model.Reservation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.failInsertN > 0 && s.inserts == s.failInsertN {
		return "", errStoreDown
	}
	s.rows[r.SeatID] = r
	return r.SeatID, nil
}

func (s *memStore) DeleteReservation(_ context.Context, f Filter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := false
	for id, r := range s.rows {
		if matches(r, f) {
			delete(s.rows, id)
			deleted = true
		}
	}
	return deleted, nil
}

func (s *memStore) get(id string) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *memStore) updatedSeat(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.updates {
		if f[FieldSeatID] == id {
			return true
		}
	}
	return false
}

func seat(id, table, label string) model.Reservation {
	return model.Reservation{
		Seat:          model.Seat{SeatID: id, Unit: "hq", TableID: table, TableName: table, Label: label},
		OccupiedSince: model.VacatedAt,
		OccupiedUntil: model.VacatedAt,
	}
}

func heldSeat(id, table, label, owner, name string, until time.Time) model.Reservation {
	r := seat(id, table, label)
	r.OwnerID = owner
	r.OwnerDisplayName = name
	r.OccupiedSince = until.Add(-time.Hour)
	r.OccupiedUntil = until
	return r
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{FieldSeatID: "a", FieldOwnerID: "b", FieldUnit: "c", FieldTableID: "d"}.Validate())
	assert.ErrorIs(t, Filter{"email": "x"}.Validate(), ErrInvalidFilter)
	assert.Equal(t, `{"ownerId":"u1"}`, Filter{FieldOwnerID: "u1"}.String())
}

func TestPatchApply(t *testing.T) {
	owner := "u1"
	r := Patch{OwnerID: &owner}.Apply(seat("s1", "t", "chair-1"))
	assert.Equal(t, "u1", r.OwnerID)
	assert.Equal(t, model.VacatedAt, r.OccupiedUntil)
	assert.True(t, Patch{}.Empty())
	assert.False(t, Patch{OwnerID: &owner}.Empty())
}

func TestListAllWalksPages(t *testing.T) {
	s := newMemStore()
	for i := 0; i < 7; i++ {
		r := seat(string(rune('a'+i)), "t", string(rune('a'+i)))
		s.rows[r.SeatID] = r
	}
	rs, err := listAll(context.Background(), s, Filter{FieldUnit: "hq"}, Sort{}, 3)
	require.NoError(t, err)
	assert.Len(t, rs, 7)
}

func TestFindSeat(t *testing.T) {
	s := newMemStore(seat("s1", "t", "chair-1"))
	r, err := findSeat(context.Background(), s, "s1")
	require.NoError(t, err)
	assert.Equal(t, "chair-1", r.Label)

	_, err = findSeat(context.Background(), s, "missing")
	assert.ErrorIs(t, err, ErrSeatNotFound)
}
