package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/school"
)

type schoolApi struct {
	svc         school.Service
	activitySvc activity.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc school.Service, activitySvc activity.Service) {
	api := schoolApi{svc: svc, activitySvc: activitySvc}

	sg := g.Group("/schools", jwt)
	sg.GET("", api.query)
	sg.GET("/active", api.queryActive)
	sg.GET("/mine", api.queryMine)
	sg.POST("", api.create)
	sg.PUT("/:id", api.update)
	sg.PATCH("/:id/status", api.toggleStatus, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *schoolApi) query(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.List(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) queryActive(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.ListActive(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying active schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) queryMine(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.ListMine(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying own schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) create(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}

	api.activitySvc.Record(ident.UserID, "registered school %q (UDISE %s)", sch.Name, sch.UDISE)
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sch, err := api.svc.Update(ctx.Request().Context(), ident, id, data)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating school")
	}

	api.activitySvc.Record(ident.UserID, "updated school %q", sch.Name)
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) toggleStatus(ctx echo.Context) error {
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
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "toggling school status")
	}

	api.activitySvc.Record(ident.UserID, "set school %d active=%t", id, isActive)
	return ctx.JSON(http.StatusOK, StatusResponse{ID: id, IsActive: isActive})
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	if err := api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting school")
	}

	api.activitySvc.Record(ident.UserID, "deleted school %d and its labs", id)
	return ctx.NoContent(http.StatusNoContent)
}

// StatusResponse is the body of all PATCH :id/status endpoints.
type StatusResponse struct {
	ID       int  `json:"id"`
	IsActive bool `json:"is_active"`
}
