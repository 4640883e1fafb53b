// Package availability holds the calendar state behind the availability
// screens: the dates leaders open for a ministry, and the subset of those a
// member marks as available.
package availability

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/escala-app/escala/errors"
	"google.golang.org/grpc/codes"
)

// DateLayout is the wire and display format of calendar dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate = errors.NewC("availability: invalid date", codes.InvalidArgument).
			WithPublicMessage("Dates must look like 2024-06-01.")

	// Members may only pick dates the leaders opened.
	ErrNotOffered = errors.NewC("availability: date not offered by leaders", codes.FailedPrecondition).
			WithPublicMessage("You can only select dates defined by the leaders.")

	ErrNoMinistry = errors.NewC("availability: no ministry selected", codes.FailedPrecondition).
			WithPublicMessage("Select a ministry first.")
)

// Date is a calendar day without time or zone. Dates are comparable and can
// be used as map keys.
type Date struct {
	year  int
	month time.Month
	day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, errors.Mark(ErrInvalidDate, 0).Append(s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals, it panics on bad input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// ParseDates parses all of ss, failing on the first invalid one.
func ParseDates(ss []string) ([]Date, error) {
	out := make([]Date, 0, len(ss))
	for _, s := range ss {
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Strings formats dates for the wire.
func Strings(dates []Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}

// set is a sorted-on-read set of dates.
type set map[Date]struct{}

func newSet(dates []Date) set {
	s := set{}
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s set) has(d Date) bool {
	_, ok := s[d]
	return ok
}

func (s set) sorted() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// UserCalendar tracks a member's selection against the dates leaders opened.
// Invariant: every selected date is offered.
type UserCalendar struct {
	offered  set
	selected set
}

// NewUserCalendar returns a calendar offering the given dates.
func NewUserCalendar(offered []Date) *UserCalendar {
	return &UserCalendar{offered: newSet(offered), selected: set{}}
}

// SetOffered replaces the offered dates, dropping selected dates that are no
// longer offered. It returns the dropped dates.
func (c *UserCalendar) SetOffered(offered []Date) []Date {
	c.offered = newSet(offered)
	return c.reconcile()
}

// Load replaces the selection with the server's copy, dropping dates the
// leaders no longer offer. It returns the dropped dates.
func (c *UserCalendar) Load(selected []Date) []Date {
	c.selected = newSet(selected)
	return c.reconcile()
}

func (c *UserCalendar) reconcile() []Date {
	var dropped []Date
	for d := range c.selected {
		if !c.offered.has(d) {
			delete(c.selected, d)
			dropped = append(dropped, d)
		}
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i].Before(dropped[j]) })
	return dropped
}

// Toggle flips d. It returns whether d is selected afterwards, or
// ErrNotOffered if the leaders didn't open d.
func (c *UserCalendar) Toggle(d Date) (bool, error) {
	if !c.offered.has(d) {
		return false, errors.Mark(ErrNotOffered, 0).Append(d.String())
	}
	if c.selected.has(d) {
		delete(c.selected, d)
		return false, nil
	}
	c.selected[d] = struct{}{}
	return true, nil
}

func (c *UserCalendar) IsOffered(d Date) bool  { return c.offered.has(d) }
func (c *UserCalendar) IsSelected(d Date) bool { return c.selected.has(d) }

// Offered returns the offered dates in order.
func (c *UserCalendar) Offered() []Date { return c.offered.sorted() }

// Selected returns the selected dates in order.
func (c *UserCalendar) Selected() []Date { return c.selected.sorted() }

// LeaderCalendar is the leader's draft of dates to open for one ministry.
type LeaderCalendar struct {
	ministryID int
	selected   set
}

func NewLeaderCalendar() *LeaderCalendar {
	return &LeaderCalendar{selected: set{}}
}

// SelectMinistry sets the ministry the dates will be opened for.
func (c *LeaderCalendar) SelectMinistry(id int) {
	c.ministryID = id
}

// DefaultMinistry selects the first of ids unless a ministry is already
// selected.
func (c *LeaderCalendar) DefaultMinistry(ids []int) {
	if c.ministryID == 0 && len(ids) > 0 {
		c.ministryID = ids[0]
	}
}

func (c *LeaderCalendar) MinistryID() int {
	return c.ministryID
}

// Toggle flips d and returns whether it is selected afterwards.
func (c *LeaderCalendar) Toggle(d Date) bool {
	if c.selected.has(d) {
		delete(c.selected, d)
		return false
	}
	c.selected[d] = struct{}{}
	return true
}

func (c *LeaderCalendar) Selected() []Date { return c.selected.sorted() }

// Ready validates the draft before it is sent.
func (c *LeaderCalendar) Ready() error {
	if c.ministryID == 0 {
		return errors.Mark(ErrNoMinistry, 0)
	}
	return nil
}

// Reset clears the dates after a successful save. The ministry is kept.
func (c *LeaderCalendar) Reset() {
	c.selected = set{}
}

// Contains reports whether dates includes d.
func Contains(dates []Date, d Date) bool {
	return slices.Contains(dates, d)
}
