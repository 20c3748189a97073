package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core/schedule"
	"github.com/urfu-lab/studyhub/core/student"
)

type scheduleApi struct {
	svc        *schedule.Service
	studentSvc *student.Service
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := scheduleApi{svc: opts.ScheduleSvc, studentSvc: opts.StudentSvc}

	sg := g.Group("/schedule", jwt)
	sg.GET("/schedule", api.query)
	sg.GET("/schedule/:id", api.retrieve)
	sg.GET("/my-schedule", api.mySchedule)
}

func (api *scheduleApi) query(ctx echo.Context) error {
	filter, err := schedule.ParseFilter(ctx.QueryParam("group"), ctx.QueryParam("weekday"))
	if err != nil {
		return err
	}
	schedules, err := api.svc.List(ctx.Request().Context(), filter, bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying schedule")
	}
	if schedules == nil {
		schedules = []schedule.Schedule{}
	}
	return ctx.JSON(http.StatusOK, schedules)
}

func (api *scheduleApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding schedule by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scheduleApi) mySchedule(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.studentSvc)
	if err != nil {
		return err
	}
	schedules, err := api.svc.ForGroups(ctx.Request().Context(), st.GroupIDs())
	if err != nil {
		return errors.Wrap(err, "querying student schedule")
	}
	if schedules == nil {
		schedules = []schedule.Schedule{}
	}
	return ctx.JSON(http.StatusOK, schedules)
}
