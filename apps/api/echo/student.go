package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/student"
)

type studentApi struct {
	svc         student.Service
	activitySvc activity.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc student.Service, activitySvc activity.Service) {
	api := studentApi{svc: svc, activitySvc: activitySvc}

	sg := g.Group("/students", jwt)
	sg.GET("", api.query)
	sg.GET("/mine", api.queryMine)
	sg.POST("", api.create)
	sg.PUT("/:id", api.update)
	sg.PATCH("/:id/status", api.toggleStatus, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *studentApi) query(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.List(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) queryMine(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.ListMine(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying own students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	st, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}

	api.activitySvc.Record(ident.UserID, "enrolled student %q in school %d", st.Name, st.SchoolID)
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) update(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	st, err := api.svc.Update(ctx.Request().Context(), ident, id, data)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating student")
	}

	api.activitySvc.Record(ident.UserID, "updated student %q", st.Name)
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) toggleStatus(ctx echo.Context) error {
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
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "toggling student status")
	}

	api.activitySvc.Record(ident.UserID, "set student %d active=%t", id, isActive)
	return ctx.JSON(http.StatusOK, StatusResponse{ID: id, IsActive: isActive})
}

func (api *studentApi) destroy(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	if err := api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting student")
	}

	api.activitySvc.Record(ident.UserID, "deleted student %d", id)
	return ctx.NoContent(http.StatusNoContent)
}
