package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/session"
)

type sessionApi struct {
	svc         session.Service
	activitySvc activity.Service
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc session.Service, activitySvc activity.Service) {
	api := sessionApi{svc: svc, activitySvc: activitySvc}

	sg := g.Group("/sessions", jwt)
	sg.GET("", api.query)
	sg.GET("/mine", api.queryMine)
	sg.POST("", api.create)
	sg.PUT("/:id", api.update)
	sg.PATCH("/:id/status", api.toggleStatus, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *sessionApi) query(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.List(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) queryMine(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.ListMine(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying own sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) create(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}

	api.activitySvc.Record(ident.UserID, "scheduled session %q in lab %d", sess.Topic, sess.LabID)
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data session.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sess, err := api.svc.Update(ctx.Request().Context(), ident, id, data)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating session")
	}

	api.activitySvc.Record(ident.UserID, "updated session %q", sess.Topic)
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) toggleStatus(ctx echo.Context) error {
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
		if errors.Cause(err) == session.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "toggling session status")
	}

	api.activitySvc.Record(ident.UserID, "set session %d active=%t", id, isActive)
	return ctx.JSON(http.StatusOK, StatusResponse{ID: id, IsActive: isActive})
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	if err := api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting session")
	}

	api.activitySvc.Record(ident.UserID, "deleted session %d", id)
	return ctx.NoContent(http.StatusNoContent)
}
