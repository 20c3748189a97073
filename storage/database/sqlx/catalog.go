package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
)

const (
	teacherSelect = `SELECT id, full_name, email, department FROM teachers`
	subjectSelect = `SELECT s.id, s.title,
       t.id AS teacher_id, t.full_name AS teacher_full_name, t.email AS teacher_email, t.department AS teacher_department
FROM subjects s LEFT JOIN teachers t ON t.id = s.teacher_id`
	groupSelect = `SELECT g.id, g.name, s.id AS subject_id, s.title AS subject_title,
       t.id AS teacher_id, t.full_name AS teacher_full_name, t.email AS teacher_email, t.department AS teacher_department
FROM groups g JOIN subjects s ON s.id = g.subject_id LEFT JOIN teachers t ON t.id = s.teacher_id`
)

type (
	teacherCols struct {
		TeacherID         uuid.NullUUID `db:"teacher_id"`
		TeacherFullName   null.String   `db:"teacher_full_name"`
		TeacherEmail      null.String   `db:"teacher_email"`
		TeacherDepartment null.String   `db:"teacher_department"`
	}

	subjectRow struct {
		ID    uuid.UUID `db:"id"`
		Title string    `db:"title"`
		teacherCols
	}

	groupRow struct {
		ID           uuid.UUID `db:"id"`
		Name         string    `db:"name"`
		SubjectID    uuid.UUID `db:"subject_id"`
		SubjectTitle string    `db:"subject_title"`
		teacherCols
	}
)

func (c teacherCols) teacher() *catalog.Teacher {
	if !c.TeacherID.Valid {
		return nil
	}
	return &catalog.Teacher{
		ID:         c.TeacherID.UUID,
		FullName:   c.TeacherFullName.String,
		Email:      c.TeacherEmail,
		Department: c.TeacherDepartment,
	}
}

func (r subjectRow) subject() catalog.Subject {
	return catalog.Subject{ID: r.ID, Title: r.Title, Teacher: r.teacher()}
}

func (r groupRow) group() catalog.Group {
	return catalog.Group{
		ID:      r.ID,
		Name:    r.Name,
		Subject: catalog.Subject{ID: r.SubjectID, Title: r.SubjectTitle, Teacher: r.teacher()},
	}
}

type catalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) QueryTeachers(ctx context.Context, ordering []core.DBOrdering) ([]catalog.Teacher, error) {
	teachers := make([]catalog.Teacher, 0)
	if err := repo.db.SelectContext(ctx, &teachers, teacherSelect+core.OrderByClause(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	return teachers, nil
}

func (repo *catalogRepository) GetTeacher(ctx context.Context, id uuid.UUID) (catalog.Teacher, error) {
	var t catalog.Teacher
	err := getOne(ctx, repo.db, &t, catalog.ErrTeacherNotFound, teacherSelect+" WHERE id = $1", id)
	return t, err
}

func (repo *catalogRepository) CreateTeacher(ctx context.Context, t catalog.Teacher) (catalog.Teacher, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO teachers (id, full_name, email, department) VALUES (:id, :full_name, :email, :department)`, t)
	return t, errors.Wrap(err, "creating teacher")
}

func (repo *catalogRepository) QuerySubjects(ctx context.Context, ordering []core.DBOrdering) ([]catalog.Subject, error) {
	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, subjectSelect+core.OrderByClause(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]catalog.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.subject())
	}
	return subjects, nil
}

func (repo *catalogRepository) GetSubject(ctx context.Context, id uuid.UUID) (catalog.Subject, error) {
	var r subjectRow
	if err := getOne(ctx, repo.db, &r, catalog.ErrSubjectNotFound, subjectSelect+" WHERE s.id = $1", id); err != nil {
		return catalog.Subject{}, err
	}
	return r.subject(), nil
}

func (repo *catalogRepository) CreateSubject(ctx context.Context, s catalog.Subject) (catalog.Subject, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := repo.db.ExecContext(ctx, `INSERT INTO subjects (id, title, teacher_id) VALUES ($1, $2, $3)`,
		s.ID, s.Title, s.TeacherID())
	return s, errors.Wrap(err, "creating subject")
}

func (repo *catalogRepository) QueryGroups(ctx context.Context, ordering []core.DBOrdering) ([]catalog.Group, error) {
	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, groupSelect+core.OrderByClause(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return groupsFromRows(rows), nil
}

func (repo *catalogRepository) GetGroup(ctx context.Context, id uuid.UUID) (catalog.Group, error) {
	var r groupRow
	if err := getOne(ctx, repo.db, &r, catalog.ErrGroupNotFound, groupSelect+" WHERE g.id = $1", id); err != nil {
		return catalog.Group{}, err
	}
	return r.group(), nil
}

func (repo *catalogRepository) GetGroupByName(ctx context.Context, name string) (catalog.Group, error) {
	var r groupRow
	if err := getOne(ctx, repo.db, &r, catalog.ErrGroupNotFound, groupSelect+" WHERE g.name = $1", name); err != nil {
		return catalog.Group{}, err
	}
	return r.group(), nil
}

func (repo *catalogRepository) CreateGroup(ctx context.Context, g catalog.Group) (catalog.Group, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := repo.db.ExecContext(ctx, `INSERT INTO groups (id, name, subject_id) VALUES ($1, $2, $3)`,
		g.ID, g.Name, g.Subject.ID)
	return g, errors.Wrap(err, "creating group")
}

func (repo *catalogRepository) GroupsByStudent(ctx context.Context, studentID uuid.UUID) ([]catalog.Group, error) {
	var rows []groupRow
	q := groupSelect + ` JOIN student_groups sg ON sg.group_id = g.id WHERE sg.student_id = $1 ORDER BY g.name`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student groups")
	}
	return groupsFromRows(rows), nil
}

func groupsFromRows(rows []groupRow) []catalog.Group {
	groups := make([]catalog.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.group())
	}
	return groups
}

// subjectsByIDs loads the given subjects with their teacher.
func subjectsByIDs(ctx context.Context, q sqlx.QueryerContext, ids []uuid.UUID) (map[uuid.UUID]catalog.Subject, error) {
	subjects := make(map[uuid.UUID]catalog.Subject)
	if ids = uniqueIDs(ids); len(ids) == 0 {
		return subjects, nil
	}
	var rows []subjectRow
	if err := sqlx.SelectContext(ctx, q, &rows, subjectSelect+" WHERE s.id = ANY($1::uuid[])", uuidArray(ids)); err != nil {
		return nil, errors.Wrap(err, "loading subjects")
	}
	for _, r := range rows {
		subjects[r.ID] = r.subject()
	}
	return subjects, nil
}

func teachersByIDs(ctx context.Context, q sqlx.QueryerContext, ids []uuid.UUID) (map[uuid.UUID]catalog.Teacher, error) {
	teachers := make(map[uuid.UUID]catalog.Teacher)
	if ids = uniqueIDs(ids); len(ids) == 0 {
		return teachers, nil
	}
	var rows []catalog.Teacher
	if err := sqlx.SelectContext(ctx, q, &rows, teacherSelect+" WHERE id = ANY($1::uuid[])", uuidArray(ids)); err != nil {
		return nil, errors.Wrap(err, "loading teachers")
	}
	for _, t := range rows {
		teachers[t.ID] = t
	}
	return teachers, nil
}

func groupsByIDs(ctx context.Context, q sqlx.QueryerContext, ids []uuid.UUID) (map[uuid.UUID]catalog.Group, error) {
	groups := make(map[uuid.UUID]catalog.Group)
	if ids = uniqueIDs(ids); len(ids) == 0 {
		return groups, nil
	}
	var rows []groupRow
	if err := sqlx.SelectContext(ctx, q, &rows, groupSelect+" WHERE g.id = ANY($1::uuid[])", uuidArray(ids)); err != nil {
		return nil, errors.Wrap(err, "loading groups")
	}
	for _, r := range rows {
		groups[r.ID] = r.group()
	}
	return groups, nil
}

func teacherRef(teachers map[uuid.UUID]catalog.Teacher, id uuid.NullUUID) *catalog.Teacher {
	if !id.Valid {
		return nil
	}
	if t, ok := teachers[id.UUID]; ok {
		return &t
	}
	return nil
}
