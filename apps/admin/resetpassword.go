package main

import (
	"context"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	st, err := cli.studentRepo.GetStudentByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err := st.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.studentRepo.UpdateStudent(ctx, st); err != nil {
		return err
	}
	return nil
}
