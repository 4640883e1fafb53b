package controller

import (
	"context"
	"sort"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/authz"
	"github.com/escala-app/escala/availability"
	"github.com/escala-app/escala/session"
)

// Assignment is one ministry's team on a date.
type Assignment struct {
	Ministry string   `json:"ministry" yaml:"ministry"`
	Members  []string `json:"members" yaml:"members"`
}

// Schedule drives the schedule screens.
type Schedule struct {
	client   *api.Client
	sessions *session.Store
}

func NewSchedule(client *api.Client, sessions *session.Store) *Schedule {
	return &Schedule{client: client, sessions: sessions}
}

// Days returns the dates the signed-in user is scheduled on, in order.
func (s *Schedule) Days(ctx context.Context) ([]availability.Date, error) {
	if err := authz.Require(s.sessions.Current(), authz.RoleAuthenticated); err != nil {
		return nil, err
	}
	raw, err := s.client.UserSchedule(ctx)
	if err != nil {
		return nil, err
	}
	days, err := availability.ParseDates(raw)
	if err != nil {
		return nil, err
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// ForDate returns who serves on date, ordered by ministry name.
func (s *Schedule) ForDate(ctx context.Context, date string) ([]Assignment, error) {
	if err := authz.Require(s.sessions.Current(), authz.RoleAuthenticated); err != nil {
		return nil, err
	}
	d, err := availability.ParseDate(date)
	if err != nil {
		return nil, err
	}
	sched, err := s.client.ScheduleForDate(ctx, d.String())
	if err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, len(sched))
	for ministry, members := range sched {
		if members == nil {
			members = []string{}
		}
		out = append(out, Assignment{Ministry: ministry, Members: members})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ministry < out[j].Ministry })
	return out, nil
}
