package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core/grade"
	"github.com/urfu-lab/studyhub/core/student"
)

type gradeApi struct {
	svc        *grade.Service
	studentSvc *student.Service
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := gradeApi{svc: opts.GradeSvc, studentSvc: opts.StudentSvc}

	gg := g.Group("/grades", jwt)
	gg.GET("/grades", api.query)
	gg.GET("/grades/:id", api.retrieve)
	gg.GET("/my-grades", api.myGrades)
}

func (api *gradeApi) query(ctx echo.Context) error {
	grades, err := api.svc.List(ctx.Request().Context(), bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	g, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding grade by ID")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) myGrades(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.studentSvc)
	if err != nil {
		return err
	}
	grades, err := api.svc.ByStudent(ctx.Request().Context(), st.ID)
	if err != nil {
		return errors.Wrap(err, "querying student grades")
	}
	return ctx.JSON(http.StatusOK, grade.GroupBySubject(grades))
}
