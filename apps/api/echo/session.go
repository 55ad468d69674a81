package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

type sessionApi struct {
	usrSvc *user.Service
	svc    *session.Service
	attSvc *attendance.Service
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc *user.Service, svc *session.Service, attSvc *attendance.Service) {
	api := sessionApi{usrSvc: usrSvc, svc: svc, attSvc: attSvc}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.create, teacherMiddleware())
	sg.GET("", api.query)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, teacherMiddleware())
	dg.DELETE("", api.destroy, teacherMiddleware())
	dg.POST("/start-live", api.startLive, teacherMiddleware())
	dg.POST("/end-live", api.endLive, teacherMiddleware())
	dg.POST("/join", api.join, studentMiddleware())
	dg.GET("/attendance", api.queryAttendance, teacherMiddleware())
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) query(ctx echo.Context) error {
	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []session.Session{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	var data session.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) startLive(ctx echo.Context) error {
	var data StartLiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartLiveRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.StartLive(ctx.Request().Context(), actor, ctx.Param("id"), data.AttendanceCode)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) endLive(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.EndLive(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) join(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.attSvc.Join(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) queryAttendance(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.attSvc.QueryForSession(ctx.Request().Context(), actor, ctx.Param("id"), ordering.Orderings...)
	if err != nil {
		return err
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

type StartLiveRequest struct {
	AttendanceCode string `json:"attendance_code" validate:"required"`
}

func (sr *StartLiveRequest) Validate() error {
	sr.AttendanceCode = core.CleanString(sr.AttendanceCode)
	return core.Validate.Struct(sr)
}
