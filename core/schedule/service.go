package schedule

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
)

var ErrNotFound = errors.New("schedule not found")

type (
	Repository interface {
		CreateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		QuerySchedules(ctx context.Context, filter Filter, ordering []core.DBOrdering) ([]Schedule, error)
		GetSchedule(ctx context.Context, id uuid.UUID) (Schedule, error)
		// SchedulesByGroups returns the schedules of the given groups ordered by weekday, then starts_at.
		SchedulesByGroups(ctx context.Context, groupIDs []uuid.UUID) ([]Schedule, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var defaultOrdering = []core.DBOrdering{{Field: "weekday", Ascending: true}, {Field: "starts_at", Ascending: true}}

func (svc *Service) List(ctx context.Context, filter Filter, ordering ...core.DBOrdering) ([]Schedule, error) {
	return svc.repo.QuerySchedules(ctx, filter, core.OrderingFields(Ordering).Clean(ordering, defaultOrdering...))
}

func (svc *Service) Get(ctx context.Context, id uuid.UUID) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, id)
}

// ForGroups returns the schedule of a student given the groups they belong to.
func (svc *Service) ForGroups(ctx context.Context, groupIDs []uuid.UUID) ([]Schedule, error) {
	if len(groupIDs) == 0 {
		return []Schedule{}, nil
	}
	return svc.repo.SchedulesByGroups(ctx, groupIDs)
}
