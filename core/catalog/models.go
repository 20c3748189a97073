package catalog

import (
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

type Teacher struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	FullName   string      `json:"full_name" db:"full_name"`
	Email      null.String `json:"email" db:"email"`
	Department null.String `json:"department" db:"department"`
}

type Subject struct {
	ID      uuid.UUID `json:"id" db:"id"`
	Title   string    `json:"title" db:"title"`
	Teacher *Teacher  `json:"teacher" db:"-"`
}

// TeacherID returns the id of the subject's teacher, if any.
func (s Subject) TeacherID() uuid.NullUUID {
	if s.Teacher == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: s.Teacher.ID, Valid: true}
}

type Group struct {
	ID      uuid.UUID `json:"id" db:"id"`
	Name    string    `json:"name" db:"name"`
	Subject Subject   `json:"subject" db:"-"`
}

var (
	TeacherOrdering = map[string]string{"full_name": "full_name", "department": "department"}
	SubjectOrdering = map[string]string{"title": "title"}
	GroupOrdering   = map[string]string{"name": "name"}
)
