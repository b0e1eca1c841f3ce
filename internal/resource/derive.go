package resource

import (
	"slices"
	"strings"
	"time"

	"github.com/manish-shre/KKMS/internal/model"
)

// SearchEvents keeps events whose title, description or location contains
// term, case-insensitively. Order is preserved; an empty term keeps all.
func SearchEvents(events []model.Event, term string) []model.Event {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if term == "" ||
			strings.Contains(strings.ToLower(e.Title), term) ||
			strings.Contains(strings.ToLower(e.Description), term) ||
			strings.Contains(strings.ToLower(e.Location), term) {
			out = append(out, e)
		}
	}
	return out
}

// SplitByDate partitions events into those on or after today and those
// before it.
func SplitByDate(events []model.Event, today model.Date) (upcoming, past []model.Event) {
	upcoming, past = []model.Event{}, []model.Event{}
	for _, e := range events {
		if e.EventDate >= today {
			upcoming = append(upcoming, e)
		} else {
			past = append(past, e)
		}
	}
	return upcoming, past
}

// EventFilter selects a date window in the admin event list.
type EventFilter string

const (
	EventsAll      EventFilter = "all"
	EventsUpcoming EventFilter = "upcoming"
	EventsPast     EventFilter = "past"
)

func FilterEvents(events []model.Event, term string, f EventFilter, today model.Date) []model.Event {
	found := SearchEvents(events, term)
	upcoming, past := SplitByDate(found, today)
	switch f {
	case EventsUpcoming:
		return upcoming
	case EventsPast:
		return past
	}
	return found
}

// SearchMembers matches term against name and designation.
func SearchMembers(members []model.Member, term string) []model.Member {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.Member, 0, len(members))
	for _, m := range members {
		if term == "" ||
			strings.Contains(strings.ToLower(m.Name), term) ||
			strings.Contains(strings.ToLower(m.Designation), term) {
			out = append(out, m)
		}
	}
	return out
}

// Featured returns up to n events that are featured or not yet past.
func Featured(events []model.Event, today model.Date, n int) []model.Event {
	out := []model.Event{}
	for _, e := range events {
		if len(out) == n {
			break
		}
		if e.IsFeatured || e.EventDate >= today {
			out = append(out, e)
		}
	}
	return out
}

// Summarize computes the admin dashboard figures at now.
func Summarize(members []model.Member, events []model.Event, now time.Time) model.Statistics {
	today := model.DateOf(now)
	monthAgo := now.AddDate(0, 0, -30)

	stats := model.Statistics{
		TotalMembers: len(members),
		TotalEvents:  len(events),
	}
	for _, m := range members {
		if !m.CreatedAt.Before(monthAgo) {
			stats.NewMembers++
		}
	}

	recent := slices.Clone(members)
	slices.SortStableFunc(recent, func(a, b model.Member) int { return b.CreatedAt.Compare(a.CreatedAt) })
	stats.RecentMembers = recent[:min(5, len(recent))]

	upcoming, _ := SplitByDate(events, today)
	stats.UpcomingEvents = len(upcoming)
	slices.SortStableFunc(upcoming, func(a, b model.Event) int { return strings.Compare(string(a.EventDate), string(b.EventDate)) })
	stats.SoonestEvents = upcoming[:min(5, len(upcoming))]

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	stats.MemberJoins = make([]model.MonthCount, 6)
	for i := range stats.MemberJoins {
		start := first.AddDate(0, i-5, 0)
		end := start.AddDate(0, 1, 0)
		c := 0
		for _, m := range members {
			t := m.CreatedAt.In(now.Location())
			if !t.Before(start) && t.Before(end) {
				c++
			}
		}
		stats.MemberJoins[i] = model.MonthCount{Label: start.Format("Jan 2006"), Count: c}
	}

	stats.EventsByMonth = make([]model.MonthCount, 6)
	for i := range stats.EventsByMonth {
		start := first.AddDate(0, i, 0)
		prefix := start.Format("2006-01")
		c := 0
		for _, e := range events {
			if strings.HasPrefix(string(e.EventDate), prefix) {
				c++
			}
		}
		stats.EventsByMonth[i] = model.MonthCount{Label: start.Format("Jan 2006"), Count: c}
	}
	return stats
}
