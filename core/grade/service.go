package grade

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
)

var ErrNotFound = errors.New("grade not found")

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		QueryGrades(ctx context.Context, ordering []core.DBOrdering) ([]Grade, error)
		GetGrade(ctx context.Context, id uuid.UUID) (Grade, error)
		// GradesByStudent returns the grades of a student ordered by subject title, then work date.
		GradesByStudent(ctx context.Context, studentID uuid.UUID) ([]Grade, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) List(ctx context.Context, ordering ...core.DBOrdering) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, core.OrderingFields(Ordering).Clean(ordering, core.DBOrdering{Field: "created_at"}))
}

func (svc *Service) Get(ctx context.Context, id uuid.UUID) (Grade, error) {
	return svc.repo.GetGrade(ctx, id)
}

func (svc *Service) ByStudent(ctx context.Context, studentID uuid.UUID) ([]Grade, error) {
	return svc.repo.GradesByStudent(ctx, studentID)
}

// GroupBySubject groups grades by subject, in the order subjects are first seen.
func GroupBySubject(grades []Grade) []SubjectGrades {
	groups := make([]SubjectGrades, 0)
	index := make(map[uuid.UUID]int)
	for _, g := range grades {
		i, ok := index[g.Subject.ID]
		if !ok {
			i = len(groups)
			index[g.Subject.ID] = i
			groups = append(groups, SubjectGrades{Subject: g.Subject, Grades: make([]Grade, 0)})
		}
		groups[i].Grades = append(groups[i].Grades, g)
	}

	for i := range groups {
		var sum int
		for _, g := range groups[i].Grades {
			sum += g.Value
		}
		groups[i].TotalGrades = len(groups[i].Grades)
		groups[i].AverageScore = core.Round2(float64(sum) / float64(groups[i].TotalGrades))
	}
	return groups
}
