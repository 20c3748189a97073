// Package testutil seeds repositories for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
	"github.com/urfu-lab/studyhub/core/grade"
	"github.com/urfu-lab/studyhub/core/schedule"
	"github.com/urfu-lab/studyhub/core/student"
)

type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	fullName, uname, email, pwd string,
	isActive bool,
	groups ...catalog.Group,
) student.Student {
	st := student.Student{
		FullName:   fullName,
		Username:   uname,
		Email:      null.NewString(email, email != ""),
		IsActive:   isActive,
		Groups:     groups,
		DateJoined: time.Now().UTC(),
	}
	if pwd != "" {
		if err := st.SetPassword(pwd); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}
	st, err := repo.CreateStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateTeacher(t *testing.T, repo catalog.Repository, fullName, department string) catalog.Teacher {
	tchr, err := repo.CreateTeacher(context.Background(), catalog.Teacher{
		FullName:   fullName,
		Department: null.NewString(department, department != ""),
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tchr
}

func CreateSubject(t *testing.T, repo catalog.Repository, title string, teacher *catalog.Teacher) catalog.Subject {
	subj, err := repo.CreateSubject(context.Background(), catalog.Subject{Title: title, Teacher: teacher})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subj
}

func CreateGroup(t *testing.T, repo catalog.Repository, name string, subject catalog.Subject) catalog.Group {
	g, err := repo.CreateGroup(context.Background(), catalog.Group{Name: name, Subject: subject})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return g
}

func CreateGrade(t *testing.T, repo grade.Repository, g grade.Grade) grade.Grade {
	if g.WorkType == "" {
		g.WorkType = grade.WorkOther
	}
	if g.Weight == 0 {
		g.Weight = 1
	}
	g, err := repo.CreateGrade(context.Background(), g)
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return g
}

func CreateSchedule(t *testing.T, repo schedule.Repository, s schedule.Schedule) schedule.Schedule {
	s, err := repo.CreateSchedule(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateSchedule() failed: %v", err)
	}
	return s
}
