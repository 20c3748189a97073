package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
)

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) QueryTeachers(_ context.Context, ordering []core.DBOrdering) ([]catalog.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teachers := make([]catalog.Teacher, 0, len(repo.db.teachers))
	for _, t := range repo.db.teachers {
		teachers = append(teachers, t)
	}
	sortBy(teachers, ordering, func(t catalog.Teacher, col string) string {
		switch col {
		case "department":
			return t.Department.String
		default:
			return t.FullName
		}
	})
	return teachers, nil
}

func (repo *catalogRepository) GetTeacher(_ context.Context, id uuid.UUID) (catalog.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.teachers[id]; ok {
		return t, nil
	}
	return catalog.Teacher{}, catalog.ErrTeacherNotFound
}

func (repo *catalogRepository) CreateTeacher(_ context.Context, t catalog.Teacher) (catalog.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	repo.db.teachers[t.ID] = t
	return t, nil
}

func (repo *catalogRepository) QuerySubjects(_ context.Context, ordering []core.DBOrdering) ([]catalog.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]catalog.Subject, 0, len(repo.db.subjects))
	for id := range repo.db.subjects {
		subjects = append(subjects, repo.db.subject(id))
	}
	sortBy(subjects, ordering, func(s catalog.Subject, _ string) string { return s.Title })
	return subjects, nil
}

func (repo *catalogRepository) GetSubject(_ context.Context, id uuid.UUID) (catalog.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.subjects[id]; ok {
		return repo.db.subject(id), nil
	}
	return catalog.Subject{}, catalog.ErrSubjectNotFound
}

func (repo *catalogRepository) CreateSubject(_ context.Context, s catalog.Subject) (catalog.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	repo.db.subjects[s.ID] = subjectRecord{Subject: catalog.Subject{ID: s.ID, Title: s.Title}, teacherID: s.TeacherID()}
	return repo.db.subject(s.ID), nil
}

func (repo *catalogRepository) QueryGroups(_ context.Context, ordering []core.DBOrdering) ([]catalog.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]catalog.Group, 0, len(repo.db.groups))
	for id := range repo.db.groups {
		groups = append(groups, repo.db.group(id))
	}
	sortBy(groups, ordering, func(g catalog.Group, _ string) string { return g.Name })
	return groups, nil
}

func (repo *catalogRepository) GetGroup(_ context.Context, id uuid.UUID) (catalog.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.groups[id]; ok {
		return repo.db.group(id), nil
	}
	return catalog.Group{}, catalog.ErrGroupNotFound
}

func (repo *catalogRepository) GetGroupByName(_ context.Context, name string) (catalog.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for id, rec := range repo.db.groups {
		if rec.Name == name {
			return repo.db.group(id), nil
		}
	}
	return catalog.Group{}, catalog.ErrGroupNotFound
}

func (repo *catalogRepository) CreateGroup(_ context.Context, g catalog.Group) (catalog.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	repo.db.groups[g.ID] = groupRecord{ID: g.ID, Name: g.Name, subjectID: g.Subject.ID}
	return repo.db.group(g.ID), nil
}

func (repo *catalogRepository) GroupsByStudent(_ context.Context, studentID uuid.UUID) ([]catalog.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.groupsOf(studentID), nil
}
