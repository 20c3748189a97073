package grade

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
)

// Work types
const (
	WorkHomework = "homework"
	WorkTest     = "test"
	WorkExam     = "exam"
	WorkQuiz     = "quiz"
	WorkLab      = "lab"
	WorkProject  = "project"
	WorkOther    = "other"
)

var WorkTypes = []string{WorkHomework, WorkTest, WorkExam, WorkQuiz, WorkLab, WorkProject, WorkOther}

type Grade struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	StudentID   uuid.UUID        `json:"student" db:"student_id"`
	Subject     catalog.Subject  `json:"subject" db:"-"`
	Teacher     *catalog.Teacher `json:"teacher" db:"-"`
	WorkType    string           `json:"work_type" db:"work_type"`
	Topic       string           `json:"topic" db:"topic"`
	Description null.String      `json:"description" db:"description"`
	Value       int              `json:"value" db:"value"`
	Weight      float64          `json:"weight" db:"weight"`
	IsFinal     bool             `json:"is_final" db:"is_final"`
	IsRetake    bool             `json:"is_retake" db:"is_retake"`
	WorkDate    core.Date        `json:"work_date" db:"work_date"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"` // UTC
}

// SubjectGrades is the grades of one subject with their plain mean.
type SubjectGrades struct {
	Subject      catalog.Subject `json:"subject"`
	Grades       []Grade         `json:"grades"`
	AverageScore float64         `json:"average_score"`
	TotalGrades  int             `json:"total_grades"`
}

var Ordering = map[string]string{
	"work_date":  "work_date",
	"created_at": "created_at",
	"value":      "value",
	"topic":      "topic",
}
