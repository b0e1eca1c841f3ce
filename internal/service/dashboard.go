package service

import (
	"context"
	"time"

	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
)

type DashboardService struct {
	members *resource.Members
	events  *resource.Events
	now     func() time.Time
}

func NewDashboardService(members *resource.Members, events *resource.Events) *DashboardService {
	return &DashboardService{members: members, events: events, now: time.Now}
}

// Stats refreshes both collections and summarizes them. A failed refresh
// falls back to the cached items.
func (s *DashboardService) Stats(ctx context.Context) model.Statistics {
	_ = s.members.List(ctx)
	_ = s.events.List(ctx)
	return resource.Summarize(s.members.Items(), s.events.Items(), s.now())
}
