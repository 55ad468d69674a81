package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/user"
)

type notificationApi struct {
	usrSvc *user.Service
	svc    *notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc *user.Service, svc *notification.Service) {
	api := notificationApi{usrSvc: usrSvc, svc: svc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.PUT("/:id/read", api.markRead)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	notifs, err := api.svc.QueryMine(ctx.Request().Context(), actor, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	notif, err := api.svc.MarkRead(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notif)
}
