package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
)

var (
	ErrTeacherNotFound = errors.New("teacher not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrGroupNotFound   = errors.New("group not found")
)

type (
	Repository interface {
		QueryTeachers(ctx context.Context, ordering []core.DBOrdering) ([]Teacher, error)
		GetTeacher(ctx context.Context, id uuid.UUID) (Teacher, error)
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)

		QuerySubjects(ctx context.Context, ordering []core.DBOrdering) ([]Subject, error)
		GetSubject(ctx context.Context, id uuid.UUID) (Subject, error)
		CreateSubject(ctx context.Context, s Subject) (Subject, error)

		QueryGroups(ctx context.Context, ordering []core.DBOrdering) ([]Group, error)
		GetGroup(ctx context.Context, id uuid.UUID) (Group, error)
		GetGroupByName(ctx context.Context, name string) (Group, error)
		CreateGroup(ctx context.Context, g Group) (Group, error)
		// GroupsByStudent returns the groups a student belongs to, ordered by name.
		GroupsByStudent(ctx context.Context, studentID uuid.UUID) ([]Group, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) ListTeachers(ctx context.Context, ordering ...core.DBOrdering) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, core.OrderingFields(TeacherOrdering).Clean(ordering, core.DBOrdering{Field: "full_name", Ascending: true}))
}

func (svc *Service) GetTeacher(ctx context.Context, id uuid.UUID) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) ListSubjects(ctx context.Context, ordering ...core.DBOrdering) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, core.OrderingFields(SubjectOrdering).Clean(ordering, core.DBOrdering{Field: "title", Ascending: true}))
}

func (svc *Service) GetSubject(ctx context.Context, id uuid.UUID) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) ListGroups(ctx context.Context, ordering ...core.DBOrdering) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, core.OrderingFields(GroupOrdering).Clean(ordering, core.DBOrdering{Field: "name", Ascending: true}))
}

func (svc *Service) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) GroupsByStudent(ctx context.Context, studentID uuid.UUID) ([]Group, error) {
	return svc.repo.GroupsByStudent(ctx, studentID)
}
