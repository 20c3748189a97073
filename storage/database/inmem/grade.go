package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/grade"
)

type gradeRepository struct {
	db *DB
}

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) resolve(rec gradeRecord) grade.Grade {
	g := rec.Grade
	g.Subject = repo.db.subject(rec.subjectID)
	g.Teacher = repo.db.teacher(rec.teacherID)
	return g
}

func (repo *gradeRepository) CreateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	rec := gradeRecord{Grade: g, subjectID: g.Subject.ID}
	if g.Teacher != nil {
		rec.teacherID = uuid.NullUUID{UUID: g.Teacher.ID, Valid: true}
	}
	repo.db.grades[g.ID] = rec
	return repo.resolve(rec), nil
}

func (repo *gradeRepository) QueryGrades(_ context.Context, ordering []core.DBOrdering) ([]grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]grade.Grade, 0, len(repo.db.grades))
	for _, rec := range repo.db.grades {
		grades = append(grades, repo.resolve(rec))
	}
	sortBy(grades, ordering, func(g grade.Grade, col string) string {
		switch col {
		case "work_date":
			return g.WorkDate.String()
		case "value":
			return fmt.Sprintf("%010d", g.Value)
		case "topic":
			return g.Topic
		default:
			return timeKey(g.CreatedAt)
		}
	})
	return grades, nil
}

func (repo *gradeRepository) GetGrade(_ context.Context, id uuid.UUID) (grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.grades[id]; ok {
		return repo.resolve(rec), nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) GradesByStudent(_ context.Context, studentID uuid.UUID) ([]grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]grade.Grade, 0)
	for _, rec := range repo.db.grades {
		if rec.StudentID == studentID {
			grades = append(grades, repo.resolve(rec))
		}
	}
	sort.SliceStable(grades, func(i, j int) bool {
		a, b := grades[i], grades[j]
		if a.Subject.Title != b.Subject.Title {
			return a.Subject.Title < b.Subject.Title
		}
		if a.WorkDate.Valid != b.WorkDate.Valid {
			return a.WorkDate.Valid // dated first
		}
		if !a.WorkDate.Time.Time.Equal(b.WorkDate.Time.Time) {
			return a.WorkDate.Time.Time.Before(b.WorkDate.Time.Time)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return grades, nil
}
