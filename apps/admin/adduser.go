package main

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/student"
)

// addUser updates or creates an active student.Student
func (cli *commandLine) addUser(uname, fullName, email, pwd string, isStaff bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	st, err := cli.studentRepo.GetStudentByUsername(ctx, uname)
	exists := err == nil
	if err != nil {
		if err != student.ErrNotFound {
			return err
		}
		st = student.Student{Username: uname, DateJoined: time.Now().UTC()}
	}
	st.FullName = core.CleanString(fullName)
	if email != "" {
		st.Email = null.StringFrom(email)
	}
	st.IsActive = true
	st.IsStaff = isStaff
	st.IsSuperuser = isStaff
	if err := st.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.studentRepo.UpdateStudent(ctx, st)
	} else {
		_, err = cli.studentRepo.CreateStudent(ctx, st)
	}
	return err
}
