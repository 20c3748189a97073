package inmemdb

import (
	"context"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) resolve(rec scheduleRecord) schedule.Schedule {
	s := rec.Schedule
	s.Subject = repo.db.subject(rec.subjectID)
	s.Group = repo.db.group(rec.groupID)
	s.Teacher = repo.db.teacher(rec.teacherID)
	return s
}

func (repo *scheduleRepository) CreateSchedule(_ context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	rec := scheduleRecord{Schedule: s, subjectID: s.Subject.ID, groupID: s.Group.ID}
	if s.Teacher != nil {
		rec.teacherID = uuid.NullUUID{UUID: s.Teacher.ID, Valid: true}
	}
	repo.db.schedules[s.ID] = rec
	return repo.resolve(rec), nil
}

func scheduleKey(s schedule.Schedule, col string) string {
	switch col {
	case "starts_at":
		return string(s.StartsAt)
	case "due_date":
		return s.DueDate.String()
	default:
		return strconv.Itoa(s.Weekday)
	}
}

func (repo *scheduleRepository) QuerySchedules(_ context.Context, filter schedule.Filter, ordering []core.DBOrdering) ([]schedule.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	items := make([]schedule.Schedule, 0)
	for _, rec := range repo.db.schedules {
		if s := repo.resolve(rec); filter.Matches(s) {
			items = append(items, s)
		}
	}
	sortBy(items, ordering, scheduleKey)
	return items, nil
}

func (repo *scheduleRepository) GetSchedule(_ context.Context, id uuid.UUID) (schedule.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.schedules[id]; ok {
		return repo.resolve(rec), nil
	}
	return schedule.Schedule{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) SchedulesByGroups(_ context.Context, groupIDs []uuid.UUID) ([]schedule.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	items := make([]schedule.Schedule, 0)
	for _, rec := range repo.db.schedules {
		if wanted[rec.groupID] {
			items = append(items, repo.resolve(rec))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Weekday != items[j].Weekday {
			return items[i].Weekday < items[j].Weekday
		}
		return items[i].StartsAt < items[j].StartsAt
	})
	return items, nil
}
