// Package inmemdb implements the repositories in memory. Tables are guarded by one RWMutex.
package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
	"github.com/urfu-lab/studyhub/core/chat"
	"github.com/urfu-lab/studyhub/core/grade"
	"github.com/urfu-lab/studyhub/core/refresh"
	"github.com/urfu-lab/studyhub/core/schedule"
	"github.com/urfu-lab/studyhub/core/student"
)

type (
	DB struct {
		mutex sync.RWMutex

		teachers      map[uuid.UUID]catalog.Teacher
		subjects      map[uuid.UUID]subjectRecord
		groups        map[uuid.UUID]groupRecord
		students      map[uuid.UUID]student.Student
		studentGroups map[uuid.UUID][]uuid.UUID
		grades        map[uuid.UUID]gradeRecord
		schedules     map[uuid.UUID]scheduleRecord
		refreshTokens map[string]refresh.Token // {hash: token}

		chatUsers    map[uuid.UUID]chat.User // {external id: user}
		chats        map[uuid.UUID]chat.Chat
		chatMessages []chat.Message // insertion order
	}

	subjectRecord struct {
		catalog.Subject
		teacherID uuid.NullUUID
	}

	groupRecord struct {
		ID        uuid.UUID
		Name      string
		subjectID uuid.UUID
	}

	gradeRecord struct {
		grade.Grade
		subjectID uuid.UUID
		teacherID uuid.NullUUID
	}

	scheduleRecord struct {
		schedule.Schedule
		subjectID uuid.UUID
		groupID   uuid.UUID
		teacherID uuid.NullUUID
	}
)

func Open() *DB {
	return &DB{
		teachers:      make(map[uuid.UUID]catalog.Teacher),
		subjects:      make(map[uuid.UUID]subjectRecord),
		groups:        make(map[uuid.UUID]groupRecord),
		students:      make(map[uuid.UUID]student.Student),
		studentGroups: make(map[uuid.UUID][]uuid.UUID),
		grades:        make(map[uuid.UUID]gradeRecord),
		schedules:     make(map[uuid.UUID]scheduleRecord),
		refreshTokens: make(map[string]refresh.Token),
		chatUsers:     make(map[uuid.UUID]chat.User),
		chats:         make(map[uuid.UUID]chat.Chat),
	}
}

// Callers must hold the mutex for the helpers below.

func (db *DB) teacher(id uuid.NullUUID) *catalog.Teacher {
	if !id.Valid {
		return nil
	}
	if t, ok := db.teachers[id.UUID]; ok {
		return &t
	}
	return nil
}

func (db *DB) subject(id uuid.UUID) catalog.Subject {
	rec, ok := db.subjects[id]
	if !ok {
		return catalog.Subject{ID: id}
	}
	s := rec.Subject
	s.Teacher = db.teacher(rec.teacherID)
	return s
}

func (db *DB) group(id uuid.UUID) catalog.Group {
	rec, ok := db.groups[id]
	if !ok {
		return catalog.Group{ID: id}
	}
	return catalog.Group{ID: rec.ID, Name: rec.Name, Subject: db.subject(rec.subjectID)}
}

func (db *DB) groupsOf(studentID uuid.UUID) []catalog.Group {
	groups := make([]catalog.Group, 0)
	for _, id := range db.studentGroups[studentID] {
		groups = append(groups, db.group(id))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// sortBy orders items with the orderings. key returns the comparable value of a column for an item.
func sortBy[T any](items []T, orderings []core.DBOrdering, key func(item T, column string) string) {
	sort.SliceStable(items, func(a, b int) bool {
		for _, ord := range orderings {
			va, vb := key(items[a], ord.Field), key(items[b], ord.Field)
			if va == vb {
				continue
			}
			if ord.Ascending {
				return va < vb
			}
			return va > vb
		}
		return false
	})
}

func timeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000")
}
