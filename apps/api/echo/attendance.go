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

type attendanceApi struct {
	usrSvc  *user.Service
	sessSvc *session.Service
	svc     *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc *user.Service, sessSvc *session.Service, svc *attendance.Service) {
	api := attendanceApi{usrSvc: usrSvc, sessSvc: sessSvc, svc: svc}

	ag := g.Group("/attendance", jwt)
	ag.POST("/checkin", api.checkIn, studentMiddleware())
	ag.POST("/verify-code", api.verifyCode)
	ag.POST("/mark", api.mark, teacherMiddleware())
	ag.PUT("/:id/status", api.updateStatus, teacherMiddleware())
	ag.GET("/mine", api.queryMine, studentMiddleware())
}

// Handlers

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	var data attendance.CheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckIn")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.CheckInWithCode(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

// verifyCode resolves an attendance code to a reduced session preview so a
// client can confirm the code before checking in.
func (api *attendanceApi) verifyCode(ctx echo.Context) error {
	var data VerifyCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyCodeRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.sessSvc.GetByAttendanceCode(ctx.Request().Context(), data.AttendanceCode)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Preview())
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.Mark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Mark")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	att, err := api.svc.Mark(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *attendanceApi) updateStatus(ctx echo.Context) error {
	var data attendance.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	att, err := api.svc.UpdateStatus(ctx.Request().Context(), actor, ctx.Param("id"), data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *attendanceApi) queryMine(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.svc.QueryMine(ctx.Request().Context(), actor, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying own attendance")
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

type VerifyCodeRequest struct {
	AttendanceCode string `json:"attendance_code" validate:"required"`
}

func (vr *VerifyCodeRequest) Validate() error {
	vr.AttendanceCode = core.CleanString(vr.AttendanceCode)
	return core.Validate.Struct(vr)
}
