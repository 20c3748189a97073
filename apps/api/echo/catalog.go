package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core/catalog"
	"github.com/urfu-lab/studyhub/core/student"
)

type catalogApi struct {
	svc        *catalog.Service
	studentSvc *student.Service
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := catalogApi{svc: opts.CatalogSvc, studentSvc: opts.StudentSvc}

	cg := g.Group("/core", jwt)
	cg.GET("/teachers", api.queryTeachers)
	cg.GET("/teachers/:id", api.retrieveTeacher)
	cg.GET("/subjects", api.querySubjects)
	cg.GET("/subjects/:id", api.retrieveSubject)
	cg.GET("/groups", api.queryGroups)
	cg.GET("/groups/:id", api.retrieveGroup)
	cg.GET("/students", api.queryStudents)
	cg.GET("/students/:id", api.retrieveStudent)
}

func (api *catalogApi) queryTeachers(ctx echo.Context) error {
	teachers, err := api.svc.ListTeachers(ctx.Request().Context(), bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []catalog.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *catalogApi) retrieveTeacher(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	teacher, err := api.svc.GetTeacher(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding teacher by ID")
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *catalogApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.ListSubjects(ctx.Request().Context(), bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []catalog.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *catalogApi) retrieveSubject(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	subject, err := api.svc.GetSubject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding subject by ID")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *catalogApi) queryGroups(ctx echo.Context) error {
	groups, err := api.svc.ListGroups(ctx.Request().Context(), bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []catalog.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *catalogApi) retrieveGroup(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	group, err := api.svc.GetGroup(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding group by ID")
	}
	return ctx.JSON(http.StatusOK, group)
}

func (api *catalogApi) queryStudents(ctx echo.Context) error {
	students, err := api.studentSvc.Query(ctx.Request().Context(), bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *catalogApi) retrieveStudent(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	st, err := api.studentSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, st)
}
