package schedule

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
)

type Schedule struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	Subject            catalog.Subject  `json:"subject" db:"-"`
	Group              catalog.Group    `json:"group" db:"-"`
	Teacher            *catalog.Teacher `json:"teacher" db:"-"`
	Weekday            int              `json:"weekday" db:"weekday"`
	StartsAt           core.Clock       `json:"starts_at" db:"starts_at"`
	EndsAt             core.Clock       `json:"ends_at" db:"ends_at"`
	DurationMinutes    null.Int         `json:"duration_minutes" db:"duration_minutes"`
	Room               null.String      `json:"room" db:"room"`
	Topic              null.String      `json:"topic" db:"topic"`
	GroupRelatedTopics null.JSON        `json:"group_related_topics" db:"group_related_topics"`
	MaxScore           float64          `json:"max_score" db:"max_score"`
	IsControlWork      bool             `json:"is_control_work" db:"is_control_work"`
	IsTest             bool             `json:"is_test" db:"is_test"`
	IsExam             bool             `json:"is_exam" db:"is_exam"`
	IsLabWork          bool             `json:"is_lab_work" db:"is_lab_work"`
	IsFinal            bool             `json:"is_final" db:"is_final"`
	IsRetake           bool             `json:"is_retake" db:"is_retake"`
	MaterialsLink      null.String      `json:"materials_link" db:"materials_link"`
	DueDate            core.Date        `json:"due_date" db:"due_date"`
}

// Filter narrows schedule listings. Zero values match everything.
type Filter struct {
	GroupID uuid.UUID
	Weekday int
}

// ParseFilter validates the raw "group" and "weekday" query values.
func ParseFilter(group, weekday string) (Filter, error) {
	var (
		f   Filter
		err error
	)
	if group != "" {
		if f.GroupID, err = uuid.Parse(group); err != nil {
			return Filter{}, core.NewValidationError(nil, core.FieldError{Field: "group", Error: "invalid group id"})
		}
	}
	if weekday != "" {
		day, err := strconv.Atoi(weekday)
		if err != nil || day < 1 || day > 7 {
			return Filter{}, core.NewValidationError(nil, core.FieldError{Field: "weekday", Error: "weekday must be between 1 (Monday) and 7 (Sunday)"})
		}
		f.Weekday = day
	}
	return f, nil
}

// Matches reports whether s passes the filter.
func (f Filter) Matches(s Schedule) bool {
	if f.GroupID != uuid.Nil && s.Group.ID != f.GroupID {
		return false
	}
	if f.Weekday != 0 && s.Weekday != f.Weekday {
		return false
	}
	return true
}

// RelatedTopics decodes group_related_topics, which may hold a list of topic names.
func (s Schedule) RelatedTopics() []string {
	if !s.GroupRelatedTopics.Valid {
		return nil
	}
	var topics []string
	if err := json.Unmarshal(s.GroupRelatedTopics.JSON, &topics); err != nil {
		return nil
	}
	return topics
}

var Ordering = map[string]string{
	"weekday":   "weekday",
	"starts_at": "starts_at",
	"due_date":  "due_date",
}
