package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/escala-app/escala/errors"
)

func dates(ss ...string) []Date {
	out := make([]Date, len(ss))
	for i, s := range ss {
		out[i] = MustParseDate(s)
	}
	return out
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-06-01 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", d.String())
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), d.Time())

	for _, bad := range []string{"", "2024-6-1", "01/06/2024", "2024-02-30", "tomorrow"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
		assert.Equal(t, codes.InvalidArgument, errors.Code(err))
	}
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	assert.Equal(t, MustParseDate("2024-06-01"), DateOf(time.Date(2024, 6, 1, 23, 30, 0, 0, loc)))
	assert.True(t, Date{}.IsZero())
	assert.False(t, MustParseDate("2024-06-01").IsZero())
}

func TestParseDates(t *testing.T) {
	ds, err := ParseDates([]string{"2024-06-08", "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-08", "2024-06-01"}, Strings(ds))

	_, err = ParseDates([]string{"2024-06-08", "nope"})
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestUserCalendar_Toggle(t *testing.T) {
	c := NewUserCalendar(dates("2024-06-01", "2024-06-08"))

	on, err := c.Toggle(MustParseDate("2024-06-08"))
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, c.IsSelected(MustParseDate("2024-06-08")))

	on, err = c.Toggle(MustParseDate("2024-06-08"))
	require.NoError(t, err)
	assert.False(t, on)
	assert.Empty(t, c.Selected())

	_, err = c.Toggle(MustParseDate("2024-06-02"))
	assert.ErrorIs(t, err, ErrNotOffered)
	assert.Equal(t, codes.FailedPrecondition, errors.Code(err))
	assert.Empty(t, c.Selected(), "rejected toggles change nothing")
}

func TestUserCalendar_LoadDropsUnoffered(t *testing.T) {
	c := NewUserCalendar(dates("2024-06-01", "2024-06-08"))

	dropped := c.Load(dates("2024-06-08", "2024-05-25", "2024-06-01"))
	assert.Equal(t, dates("2024-05-25"), dropped)
	assert.Equal(t, dates("2024-06-01", "2024-06-08"), c.Selected(), "selection is sorted")
}

func TestUserCalendar_SetOffered(t *testing.T) {
	c := NewUserCalendar(dates("2024-06-01", "2024-06-08"))
	c.Load(dates("2024-06-01", "2024-06-08"))

	dropped := c.SetOffered(dates("2024-06-08", "2024-06-15"))
	assert.Equal(t, dates("2024-06-01"), dropped)
	assert.Equal(t, dates("2024-06-08"), c.Selected())
	assert.Equal(t, dates("2024-06-08", "2024-06-15"), c.Offered())
	assert.True(t, c.IsOffered(MustParseDate("2024-06-15")))
}

func TestLeaderCalendar(t *testing.T) {
	c := NewLeaderCalendar()
	assert.ErrorIs(t, c.Ready(), ErrNoMinistry)

	c.DefaultMinistry([]int{4, 7})
	assert.Equal(t, 4, c.MinistryID())
	c.DefaultMinistry([]int{9})
	assert.Equal(t, 4, c.MinistryID(), "an existing choice is kept")
	c.SelectMinistry(7)
	assert.Equal(t, 7, c.MinistryID())
	assert.NoError(t, c.Ready())

	assert.True(t, c.Toggle(MustParseDate("2024-06-15")))
	assert.True(t, c.Toggle(MustParseDate("2024-06-01")))
	assert.False(t, c.Toggle(MustParseDate("2024-06-15")))
	assert.Equal(t, dates("2024-06-01"), c.Selected())

	c.Reset()
	assert.Empty(t, c.Selected())
	assert.Equal(t, 7, c.MinistryID())
}

func TestContains(t *testing.T) {
	ds := dates("2024-06-01", "2024-06-08")
	assert.True(t, Contains(ds, MustParseDate("2024-06-08")))
	assert.False(t, Contains(ds, MustParseDate("2024-06-09")))
}
