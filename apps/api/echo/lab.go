package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/lab"
)

type labApi struct {
	svc         lab.Service
	activitySvc activity.Service
}

func registerLabAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc lab.Service, activitySvc activity.Service) {
	api := labApi{svc: svc, activitySvc: activitySvc}

	lg := g.Group("/labs", jwt)
	lg.GET("", api.query)
	lg.GET("/mine", api.queryMine)
	lg.POST("", api.create)
	lg.PUT("/:id", api.update)
	lg.PATCH("/:id/status", api.toggleStatus, adminMiddleware())
	lg.DELETE("/:id", api.destroy, adminMiddleware())

	// lab types have no scope or status of their own
	tg := g.Group("/lab-types", jwt)
	tg.GET("", api.queryTypes)
	tg.POST("", api.createType, adminMiddleware())
}

func (api *labApi) query(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	labs, err := api.svc.List(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying labs")
	}
	if labs == nil {
		labs = []lab.Lab{}
	}
	return ctx.JSON(http.StatusOK, labs)
}

func (api *labApi) queryMine(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	labs, err := api.svc.ListMine(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying own labs")
	}
	if labs == nil {
		labs = []lab.Lab{}
	}
	return ctx.JSON(http.StatusOK, labs)
}

func (api *labApi) create(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data lab.NewLab
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLab")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	l, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating lab")
	}

	api.activitySvc.Record(ident.UserID, "set up lab %q in school %d", l.Name, l.SchoolID)
	return ctx.JSON(http.StatusCreated, l)
}

func (api *labApi) update(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data lab.UpdateLab
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLab")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	l, err := api.svc.Update(ctx.Request().Context(), ident, id, data)
	if err != nil {
		if errors.Cause(err) == lab.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating lab")
	}

	api.activitySvc.Record(ident.UserID, "updated lab %q", l.Name)
	return ctx.JSON(http.StatusOK, l)
}

func (api *labApi) toggleStatus(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	isActive, err := api.svc.ToggleStatus(ctx.Request().Context(), ident, id)
	if err != nil {
		if errors.Cause(err) == lab.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "toggling lab status")
	}

	api.activitySvc.Record(ident.UserID, "set lab %d active=%t", id, isActive)
	return ctx.JSON(http.StatusOK, StatusResponse{ID: id, IsActive: isActive})
}

func (api *labApi) destroy(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	if err := api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		if errors.Cause(err) == lab.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting lab")
	}

	api.activitySvc.Record(ident.UserID, "deleted lab %d", id)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *labApi) queryTypes(ctx echo.Context) error {
	types, err := api.svc.ListTypes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying lab types")
	}
	if types == nil {
		types = []lab.LabType{}
	}
	return ctx.JSON(http.StatusOK, types)
}

func (api *labApi) createType(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data lab.NewLabType
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLabType")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	lt, err := api.svc.CreateType(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lab type")
	}

	api.activitySvc.Record(ident.UserID, "added lab type %q", lt.Name)
	return ctx.JSON(http.StatusCreated, lt)
}
