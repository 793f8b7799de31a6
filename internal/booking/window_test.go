package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2024, time.March, 14, h, m, 0, 0, time.UTC)
}

func TestParseCutover(t *testing.T) {
	c, err := ParseCutover("10:00")
	require.NoError(t, err)
	assert.Equal(t, Cutover{Hour: 10}, c)
	assert.Equal(t, "10:00", c.String())

	for _, bad := range []string{"", "25:00", "10", "ten"} {
		_, err := ParseCutover(bad)
		assert.Error(t, err, bad)
	}
}

func TestOccupiedUntil(t *testing.T) {
	c := Cutover{Hour: 10}
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before cutover ends today", at(9, 0), at(10, 0)},
		{"after cutover ends tomorrow", at(11, 0), at(10, 0).AddDate(0, 0, 1)},
		{"exactly at cutover ends tomorrow", at(10, 0), at(10, 0).AddDate(0, 0, 1)},
		{"just before midnight", at(23, 59), at(10, 0).AddDate(0, 0, 1)},
		{"midnight", at(0, 0), at(10, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.OccupiedUntil(tt.now))
		})
	}
}

func TestOccupiedUntilHalfPastCutover(t *testing.T) {
	c, err := ParseCutover("10:30")
	require.NoError(t, err)

	morning := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC), c.OccupiedUntil(morning))

	late := time.Date(2024, time.January, 15, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.January, 16, 10, 30, 0, 0, time.UTC), c.OccupiedUntil(late))
}

func TestOccupiedUntilConvertsToUTC(t *testing.T) {
	c := Cutover{Hour: 10}
	berlin := time.FixedZone("CET", 3600)
	// 10:30 local is 09:30 UTC
	now := time.Date(2024, time.March, 14, 10, 30, 0, 0, berlin)
	assert.Equal(t, at(10, 0), c.OccupiedUntil(now))
}

func TestOccupiedUntilAlwaysWithinOneDay(t *testing.T) {
	c := Cutover{Hour: 7, Minute: 45}
	start := at(0, 0)
	for i := 0; i < 48*60; i += 7 {
		now := start.Add(time.Duration(i) * time.Minute)
		got := c.OccupiedUntil(now)
		require.True(t, got.After(now), now)
		require.LessOrEqual(t, got.Sub(now), 24*time.Hour, now)
		require.Equal(t, 7, got.Hour())
		require.Equal(t, 45, got.Minute())
	}
}
