package sqlxrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/schedule"
)

const scheduleSelect = `SELECT id, subject_id, group_id, teacher_id, weekday, starts_at, ends_at, duration_minutes, room, topic,
       group_related_topics, max_score, is_control_work, is_test, is_exam, is_lab_work, is_final, is_retake,
       materials_link, due_date
FROM schedules`

type scheduleRow struct {
	schedule.Schedule
	SubjectID uuid.UUID     `db:"subject_id"`
	GroupID   uuid.UUID     `db:"group_id"`
	TeacherID uuid.NullUUID `db:"teacher_id"`
}

type scheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	row := scheduleRow{Schedule: s, SubjectID: s.Subject.ID, GroupID: s.Group.ID}
	if s.Teacher != nil {
		row.TeacherID = uuid.NullUUID{UUID: s.Teacher.ID, Valid: true}
	}
	q := `INSERT INTO schedules (id, subject_id, group_id, teacher_id, weekday, starts_at, ends_at, duration_minutes, room,
    topic, group_related_topics, max_score, is_control_work, is_test, is_exam, is_lab_work, is_final, is_retake,
    materials_link, due_date)
VALUES (:id, :subject_id, :group_id, :teacher_id, :weekday, :starts_at, :ends_at, :duration_minutes, :room,
    :topic, CAST(convert_from(:group_related_topics, 'UTF8') AS jsonb), :max_score, :is_control_work, :is_test, :is_exam, :is_lab_work, :is_final, :is_retake,
    :materials_link, :due_date)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return schedule.Schedule{}, errors.Wrap(err, "creating schedule")
	}
	return repo.GetSchedule(ctx, s.ID)
}

func (repo *scheduleRepository) QuerySchedules(ctx context.Context, filter schedule.Filter, ordering []core.DBOrdering) ([]schedule.Schedule, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.GroupID != uuid.Nil {
		args = append(args, filter.GroupID)
		conds = append(conds, "group_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Weekday != 0 {
		args = append(args, filter.Weekday)
		conds = append(conds, "weekday = $"+strconv.Itoa(len(args)))
	}
	q := scheduleSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	var rows []scheduleRow
	if err := repo.db.SelectContext(ctx, &rows, q+core.OrderByClause(ordering), args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	return repo.resolve(ctx, rows)
}

func (repo *scheduleRepository) GetSchedule(ctx context.Context, id uuid.UUID) (schedule.Schedule, error) {
	var row scheduleRow
	if err := getOne(ctx, repo.db, &row, schedule.ErrNotFound, scheduleSelect+" WHERE id = $1", id); err != nil {
		return schedule.Schedule{}, err
	}
	items, err := repo.resolve(ctx, []scheduleRow{row})
	if err != nil {
		return schedule.Schedule{}, err
	}
	return items[0], nil
}

func (repo *scheduleRepository) SchedulesByGroups(ctx context.Context, groupIDs []uuid.UUID) ([]schedule.Schedule, error) {
	var rows []scheduleRow
	q := scheduleSelect + " WHERE group_id = ANY($1::uuid[]) ORDER BY weekday, starts_at"
	if err := repo.db.SelectContext(ctx, &rows, q, uuidArray(groupIDs)); err != nil {
		return nil, errors.Wrap(err, "querying group schedules")
	}
	return repo.resolve(ctx, rows)
}

func (repo *scheduleRepository) resolve(ctx context.Context, rows []scheduleRow) ([]schedule.Schedule, error) {
	groupIDs := make([]uuid.UUID, 0, len(rows))
	subjectIDs := make([]uuid.UUID, 0, len(rows))
	teacherIDs := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		groupIDs = append(groupIDs, r.GroupID)
		subjectIDs = append(subjectIDs, r.SubjectID)
		if r.TeacherID.Valid {
			teacherIDs = append(teacherIDs, r.TeacherID.UUID)
		}
	}
	groups, err := groupsByIDs(ctx, repo.db, groupIDs)
	if err != nil {
		return nil, err
	}
	subjects, err := subjectsByIDs(ctx, repo.db, subjectIDs)
	if err != nil {
		return nil, err
	}
	teachers, err := teachersByIDs(ctx, repo.db, teacherIDs)
	if err != nil {
		return nil, err
	}

	items := make([]schedule.Schedule, 0, len(rows))
	for _, r := range rows {
		s := r.Schedule
		s.Group = groups[r.GroupID]
		s.Subject = subjects[r.SubjectID]
		s.Teacher = teacherRef(teachers, r.TeacherID)
		items = append(items, s)
	}
	return items, nil
}
