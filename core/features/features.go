// Package features turns a student's schedule and grades into per-topic summaries.
package features

import (
	"context"
	"math"
	"time"

	"github.com/urfu-lab/studyhub/core"
)

type (
	// ScheduleItem is the part of a core schedule entry the extractor reads.
	ScheduleItem struct {
		Topic   string    `json:"topic"`
		IsTest  bool      `json:"is_test"`
		IsExam  bool      `json:"is_exam"`
		DueDate core.Date `json:"due_date"`
	}

	GradeItem struct {
		Topic    string    `json:"topic"`
		Value    float64   `json:"value"`
		Weight   *float64  `json:"weight"` // nil counts as 1
		WorkDate core.Date `json:"work_date"`
	}

	// GradeBlock is one subject of the core "my grades" response.
	GradeBlock struct {
		Grades []GradeItem `json:"grades"`
	}

	// Topic holds the features of one topic. Absent features are nil and omitted.
	Topic struct {
		AvgScore           *float64 `json:"avg_score,omitempty"`
		Fails              *int     `json:"fails,omitempty"`
		DaysSinceLastGrade *int     `json:"days_since_last_grade,omitempty"`
		IsTest             *bool    `json:"is_test,omitempty"`
		IsExam             *bool    `json:"is_exam,omitempty"`
		DaysUntilEvent     *int     `json:"days_until_event,omitempty"`
	}

	Features map[string]Topic

	// Source fetches the caller's data from the core API.
	Source interface {
		MySchedule(ctx context.Context, token string) ([]ScheduleItem, error)
		MyGrades(ctx context.Context, token string) ([]GradeBlock, error)
	}
)

// ExtractScheduleFeatures keys schedule entries by topic. Entries without a topic are skipped and
// a later entry replaces an earlier one for the same topic.
func ExtractScheduleFeatures(items []ScheduleItem, today time.Time) Features {
	result := make(Features)
	for _, item := range items {
		if item.Topic == "" {
			continue
		}
		isTest, isExam := item.IsTest, item.IsExam
		f := Topic{IsTest: &isTest, IsExam: &isExam}
		if item.DueDate.Valid {
			days := daysBetween(today, item.DueDate.Time.Time)
			f.DaysUntilEvent = &days
		}
		result[item.Topic] = f
	}
	return result
}

type gradeStats struct {
	weighted, weights float64
	fails             int
	last              time.Time
	hasLast           bool
}

// ExtractGradeFeatures aggregates grades by topic: weighted mean, failing grades (below 4)
// and whole days since the latest graded work.
func ExtractGradeFeatures(blocks []GradeBlock, now time.Time) Features {
	stats := make(map[string]*gradeStats)
	var order []string
	for _, block := range blocks {
		for _, g := range block.Grades {
			s, ok := stats[g.Topic]
			if !ok {
				s = new(gradeStats)
				stats[g.Topic] = s
				order = append(order, g.Topic)
			}
			weight := 1.0
			if g.Weight != nil {
				weight = *g.Weight
			}
			s.weighted += g.Value * weight
			s.weights += weight
			if g.Value < 4 {
				s.fails++
			}
			if g.WorkDate.Valid && (!s.hasLast || g.WorkDate.Time.Time.After(s.last)) {
				s.last, s.hasLast = g.WorkDate.Time.Time, true
			}
		}
	}

	result := make(Features, len(stats))
	for _, topic := range order {
		s := stats[topic]
		fails := s.fails
		f := Topic{Fails: &fails}
		if s.weights != 0 {
			avg := round2(s.weighted / s.weights)
			f.AvgScore = &avg
		}
		if s.hasLast {
			days := int(math.Floor(now.Sub(s.last).Hours() / 24))
			f.DaysSinceLastGrade = &days
		}
		result[topic] = f
	}
	return result
}

// Merge joins grade and schedule features by topic. Schedule features win on conflict.
func Merge(grades, schedule Features) Features {
	result := make(Features, len(grades)+len(schedule))
	for topic, f := range grades {
		result[topic] = f
	}
	for topic, s := range schedule {
		f := result[topic]
		if s.AvgScore != nil {
			f.AvgScore = s.AvgScore
		}
		if s.Fails != nil {
			f.Fails = s.Fails
		}
		if s.DaysSinceLastGrade != nil {
			f.DaysSinceLastGrade = s.DaysSinceLastGrade
		}
		if s.IsTest != nil {
			f.IsTest = s.IsTest
		}
		if s.IsExam != nil {
			f.IsExam = s.IsExam
		}
		if s.DaysUntilEvent != nil {
			f.DaysUntilEvent = s.DaysUntilEvent
		}
		result[topic] = f
	}
	return result
}

// Collector gathers the features of the student a token belongs to.
type Collector struct {
	source  Source
	NowFunc func() time.Time
}

func NewCollector(source Source) *Collector {
	return &Collector{source: source, NowFunc: time.Now}
}

func (c *Collector) Collect(ctx context.Context, token string) (Features, error) {
	schedule, err := c.source.MySchedule(ctx, token)
	if err != nil {
		return nil, err
	}
	grades, err := c.source.MyGrades(ctx, token)
	if err != nil {
		return nil, err
	}
	now := c.NowFunc().UTC()
	return Merge(ExtractGradeFeatures(grades, now), ExtractScheduleFeatures(schedule, now)), nil
}

// daysBetween counts calendar days from the date of from to the date of to.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
