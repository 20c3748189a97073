package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/grade"
)

const gradeSelect = `SELECT g.id, g.student_id, g.subject_id, g.teacher_id, g.work_type, g.topic, g.description, g.value,
       g.weight, g.is_final, g.is_retake, g.work_date, g.created_at, g.updated_at
FROM grades g`

type gradeRow struct {
	grade.Grade
	SubjectID uuid.UUID     `db:"subject_id"`
	TeacherID uuid.NullUUID `db:"teacher_id"`
}

type gradeRepository struct {
	db *sqlx.DB
}

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	row := gradeRow{Grade: g, SubjectID: g.Subject.ID}
	if g.Teacher != nil {
		row.TeacherID = uuid.NullUUID{UUID: g.Teacher.ID, Valid: true}
	}
	q := `INSERT INTO grades (id, student_id, subject_id, teacher_id, work_type, topic, description, value, weight, is_final,
    is_retake, work_date, created_at, updated_at)
VALUES (:id, :student_id, :subject_id, :teacher_id, :work_type, :topic, :description, :value, :weight, :is_final,
    :is_retake, :work_date, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return grade.Grade{}, errors.Wrap(err, "creating grade")
	}
	return repo.GetGrade(ctx, g.ID)
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, ordering []core.DBOrdering) ([]grade.Grade, error) {
	var rows []gradeRow
	if err := repo.db.SelectContext(ctx, &rows, gradeSelect+core.OrderByClause(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return repo.resolve(ctx, rows)
}

func (repo *gradeRepository) GetGrade(ctx context.Context, id uuid.UUID) (grade.Grade, error) {
	var row gradeRow
	if err := getOne(ctx, repo.db, &row, grade.ErrNotFound, gradeSelect+" WHERE g.id = $1", id); err != nil {
		return grade.Grade{}, err
	}
	grades, err := repo.resolve(ctx, []gradeRow{row})
	if err != nil {
		return grade.Grade{}, err
	}
	return grades[0], nil
}

func (repo *gradeRepository) GradesByStudent(ctx context.Context, studentID uuid.UUID) ([]grade.Grade, error) {
	var rows []gradeRow
	q := gradeSelect + ` JOIN subjects s ON s.id = g.subject_id
WHERE g.student_id = $1
ORDER BY s.title, g.work_date NULLS LAST, g.created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student grades")
	}
	return repo.resolve(ctx, rows)
}

// resolve attaches the subject and teacher of every row.
func (repo *gradeRepository) resolve(ctx context.Context, rows []gradeRow) ([]grade.Grade, error) {
	subjectIDs := make([]uuid.UUID, 0, len(rows))
	teacherIDs := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		subjectIDs = append(subjectIDs, r.SubjectID)
		if r.TeacherID.Valid {
			teacherIDs = append(teacherIDs, r.TeacherID.UUID)
		}
	}
	subjects, err := subjectsByIDs(ctx, repo.db, subjectIDs)
	if err != nil {
		return nil, err
	}
	teachers, err := teachersByIDs(ctx, repo.db, teacherIDs)
	if err != nil {
		return nil, err
	}

	grades := make([]grade.Grade, 0, len(rows))
	for _, r := range rows {
		g := r.Grade
		g.Subject = subjects[r.SubjectID]
		g.Teacher = teacherRef(teachers, r.TeacherID)
		grades = append(grades, g)
	}
	return grades, nil
}
