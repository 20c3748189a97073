package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/student"
)

type studentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

// find returns the first student matching pred, with its groups.
func (repo *studentRepository) find(pred func(st student.Student) bool) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, st := range repo.db.students {
		if pred(st) {
			st.Groups = repo.db.groupsOf(st.ID)
			return st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) CheckUniqueness(_ context.Context, username, email string, excludedIDs ...uuid.UUID) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[uuid.UUID]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	emailTaken := false
	for _, st := range repo.db.students {
		if excluded[st.ID] {
			continue
		}
		if st.Username == username {
			return student.ErrUsernameExists
		}
		if email != "" && st.Email.String == email {
			emailTaken = true
		}
	}
	if emailTaken {
		return student.ErrEmailExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	repo.db.studentGroups[st.ID] = st.GroupIDs()
	st.Groups = nil
	repo.db.students[st.ID] = st

	st.Groups = repo.db.groupsOf(st.ID)
	return st, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, st := range repo.db.students {
		st.Groups = repo.db.groupsOf(st.ID)
		students = append(students, st)
	}
	sortBy(students, ordering, func(st student.Student, col string) string {
		switch col {
		case "full_name":
			return st.FullName
		case "date_joined":
			return timeKey(st.DateJoined)
		case "last_login":
			if !st.LastLogin.Valid {
				return ""
			}
			return timeKey(st.LastLogin.Time)
		default:
			return st.Username
		}
	})
	return students, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id uuid.UUID) (student.Student, error) {
	return repo.find(func(st student.Student) bool { return st.ID == id })
}

func (repo *studentRepository) GetStudentByUsername(_ context.Context, username string) (student.Student, error) {
	return repo.find(func(st student.Student) bool { return st.Username == username })
}

func (repo *studentRepository) GetStudentByEmail(_ context.Context, email string) (student.Student, error) {
	return repo.find(func(st student.Student) bool { return st.Email.Valid && st.Email.String == email })
}

func (repo *studentRepository) GetStudentByUsernameOrEmail(_ context.Context, username string) (student.Student, error) {
	return repo.find(func(st student.Student) bool {
		return st.Username == username || (st.Email.Valid && st.Email.String == username)
	})
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.students[st.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	orig.Username = st.Username
	orig.FullName = st.FullName
	orig.Email = st.Email
	orig.PasswordHash = st.PasswordHash
	orig.IsActive = st.IsActive
	orig.IsStaff = st.IsStaff
	orig.IsSuperuser = st.IsSuperuser
	repo.db.students[st.ID] = orig

	orig.Groups = repo.db.groupsOf(orig.ID)
	return orig, nil
}

func (repo *studentRepository) SetLastLogin(_ context.Context, id uuid.UUID, t time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.students[id]
	if !ok {
		return student.ErrNotFound
	}
	st.LastLogin = null.TimeFrom(t)
	repo.db.students[id] = st
	return nil
}
