package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/activity"
)

type activityApi struct {
	svc activity.Service
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc activity.Service) {
	api := activityApi{svc: svc}
	g.GET("/activities", api.query, jwt, adminMiddleware())
}

func (api *activityApi) query(ctx echo.Context) error {
	// optional ?user_id= narrows to one actor
	var userID int
	if v := ctx.QueryParam("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return errHttpNotFound
		}
		userID = id
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	activities, err := api.svc.Query(ctx.Request().Context(), userID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	if activities == nil {
		activities = []activity.Activity{}
	}
	return ctx.JSON(http.StatusOK, activities)
}
