package grade

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/urfu-lab/studyhub/core/catalog"
)

func TestGroupBySubject(t *testing.T) {
	math := catalog.Subject{ID: uuid.New(), Title: "Math"}
	physics := catalog.Subject{ID: uuid.New(), Title: "Physics"}

	grades := []Grade{
		{ID: uuid.New(), Subject: physics, Topic: "Optics", Value: 5},
		{ID: uuid.New(), Subject: math, Topic: "Limits", Value: 3},
		{ID: uuid.New(), Subject: physics, Topic: "Waves", Value: 4},
		{ID: uuid.New(), Subject: math, Topic: "Series", Value: 4},
		{ID: uuid.New(), Subject: math, Topic: "Integrals", Value: 4},
	}

	tests := []struct {
		name   string
		grades []Grade
		want   []SubjectGrades
	}{
		{name: "no grades", grades: nil, want: []SubjectGrades{}},
		{
			name:   "first seen order and rounded mean",
			grades: grades,
			want: []SubjectGrades{
				{Subject: physics, Grades: []Grade{grades[0], grades[2]}, AverageScore: 4.5, TotalGrades: 2},
				{Subject: math, Grades: []Grade{grades[1], grades[3], grades[4]}, AverageScore: 3.67, TotalGrades: 3},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GroupBySubject(tt.grades))
		})
	}
}

func TestErrorsCarryStack(t *testing.T) {
	assert.Contains(t, fmt.Sprintf("%+v", ErrNotFound), "core/grade/service.go")
}
