package sqlxrepos

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
	"github.com/urfu-lab/studyhub/core/student"
	"github.com/urfu-lab/studyhub/storage/database"
)

const studentSelect = `SELECT id, username, full_name, email, password_hash, is_active, is_staff, is_superuser, date_joined, last_login
FROM students`

type studentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...uuid.UUID) error {
	var rows []struct {
		Username string      `db:"username"`
		Email    null.String `db:"email"`
	}
	q := `SELECT username, email FROM students WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3::uuid[]))`
	if err := repo.db.SelectContext(ctx, &rows, q, username, email, uuidArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return student.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return student.ErrEmailExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO students (id, username, full_name, email, password_hash, is_active, is_staff, is_superuser, date_joined)
VALUES (:id, :username, :full_name, :email, :password_hash, :is_active, :is_staff, :is_superuser, :date_joined)`
		if _, err := tx.NamedExecContext(ctx, q, st); err != nil {
			return errors.Wrap(err, "creating student")
		}
		for _, groupID := range st.GroupIDs() {
			if _, err := tx.ExecContext(ctx, `INSERT INTO student_groups (student_id, group_id) VALUES ($1, $2)`, st.ID, groupID); err != nil {
				return errors.Wrap(err, "adding student to group")
			}
		}
		return nil
	})
	if err != nil {
		return student.Student{}, err
	}
	return repo.GetStudentByID(ctx, st.ID)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, ordering []core.DBOrdering) ([]student.Student, error) {
	students := make([]student.Student, 0)
	if err := repo.db.SelectContext(ctx, &students, studentSelect+core.OrderByClause(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if err := repo.loadGroups(ctx, students); err != nil {
		return nil, err
	}
	return students, nil
}

func (repo *studentRepository) getStudent(ctx context.Context, where string, args ...interface{}) (student.Student, error) {
	var st student.Student
	if err := getOne(ctx, repo.db, &st, student.ErrNotFound, studentSelect+" WHERE "+where+" LIMIT 1", args...); err != nil {
		return student.Student{}, err
	}
	students := []student.Student{st}
	if err := repo.loadGroups(ctx, students); err != nil {
		return student.Student{}, err
	}
	return students[0], nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id uuid.UUID) (student.Student, error) {
	return repo.getStudent(ctx, "id = $1", id)
}

func (repo *studentRepository) GetStudentByUsername(ctx context.Context, username string) (student.Student, error) {
	return repo.getStudent(ctx, "username = $1", username)
}

func (repo *studentRepository) GetStudentByEmail(ctx context.Context, email string) (student.Student, error) {
	return repo.getStudent(ctx, "email = $1", email)
}

func (repo *studentRepository) GetStudentByUsernameOrEmail(ctx context.Context, username string) (student.Student, error) {
	return repo.getStudent(ctx, "username = $1 OR email = $1", username)
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `UPDATE students SET username = :username, full_name = :full_name, email = :email, password_hash = :password_hash,
    is_active = :is_active, is_staff = :is_staff, is_superuser = :is_superuser
WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, st)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if err = checkAffected(res, student.ErrNotFound); err != nil {
		return student.Student{}, err
	}
	return repo.GetStudentByID(ctx, st.ID)
}

func (repo *studentRepository) SetLastLogin(ctx context.Context, id uuid.UUID, t time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE students SET last_login = $2 WHERE id = $1`, id, t)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return checkAffected(res, student.ErrNotFound)
}

// loadGroups fills the groups of every student, ordered by name.
func (repo *studentRepository) loadGroups(ctx context.Context, students []student.Student) error {
	if len(students) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}

	var links []struct {
		StudentID uuid.UUID `db:"student_id"`
		GroupID   uuid.UUID `db:"group_id"`
	}
	q := `SELECT student_id, group_id FROM student_groups WHERE student_id = ANY($1::uuid[])`
	if err := repo.db.SelectContext(ctx, &links, q, uuidArray(ids)); err != nil {
		return errors.Wrap(err, "loading student groups")
	}

	groupIDs := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		groupIDs = append(groupIDs, l.GroupID)
	}
	groups, err := groupsByIDs(ctx, repo.db, groupIDs)
	if err != nil {
		return err
	}

	byStudent := make(map[uuid.UUID][]catalog.Group, len(students))
	for _, l := range links {
		if g, ok := groups[l.GroupID]; ok {
			byStudent[l.StudentID] = append(byStudent[l.StudentID], g)
		}
	}
	for i := range students {
		sg := byStudent[students[i].ID]
		if sg == nil {
			sg = make([]catalog.Group, 0)
		}
		sort.Slice(sg, func(a, b int) bool { return sg[a].Name < sg[b].Name })
		students[i].Groups = sg
	}
	return nil
}
