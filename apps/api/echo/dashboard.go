package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/dashboard"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
)

type dashboardApi struct {
	*Deps
}

func registerDashboardAPI(g *echo.Group, deps *Deps) {
	api := dashboardApi{Deps: deps}

	g.GET("/dashboard/admin", api.admin)
	g.GET("/dashboard/super", api.super, superAdminMiddleware)
	g.GET("/logs", api.logs, superAdminMiddleware)
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.summary(ctx, dashboard.AdminScope{UserID: usr.ID})
}

func (api *dashboardApi) super(ctx echo.Context) error {
	return api.summary(ctx, dashboard.SuperAdminScope{})
}

// summary serves the cached summary of scope, possibly stale while it is being recomputed.
func (api *dashboardApi) summary(ctx echo.Context, scope dashboard.Scope) error {
	sum, err := api.Cache.Get(ctx.Request().Context(), scope.CacheKey(), func(c context.Context) (interface{}, error) {
		return api.DashboardSvc.Summary(c, scope)
	})
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *dashboardApi) logs(ctx echo.Context) error {
	filter := new(activity.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []activity.Log{})
	}

	fetch := func(c context.Context) ([]activity.Log, error) {
		return api.ActivitySvc.Query(c, *filter)
	}
	var logs []activity.Log
	var err error
	if *filter == (activity.QueryFilter{}) {
		logs, err = querycache.Read(ctx.Request().Context(), api.Cache, querycache.LogList(), fetch)
	} else {
		logs, err = fetch(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying activity logs")
	}
	return ctx.JSON(http.StatusOK, orEmpty(logs))
}
