package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/equipment"
)

type equipmentApi struct {
	svc         equipment.Service
	activitySvc activity.Service
}

func registerEquipmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc equipment.Service, activitySvc activity.Service) {
	api := equipmentApi{svc: svc, activitySvc: activitySvc}

	eg := g.Group("/equipment", jwt)
	eg.GET("", api.query)
	eg.GET("/mine", api.queryMine)
	eg.POST("", api.create)
	eg.PUT("/:id", api.update)
	eg.PATCH("/:id/status", api.toggleStatus, adminMiddleware())
	eg.DELETE("/:id", api.destroy, adminMiddleware())

	ag := g.Group("/allocations", jwt)
	ag.GET("", api.queryAllocations)
	ag.GET("/mine", api.queryMyAllocations)
	ag.POST("", api.allocate)
	ag.PUT("/:id", api.updateAllocation)
	ag.PATCH("/:id/status", api.toggleAllocationStatus, adminMiddleware())
	ag.DELETE("/:id", api.destroyAllocation, adminMiddleware())
}

func (api *equipmentApi) query(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	items, err := api.svc.List(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying equipment")
	}
	if items == nil {
		items = []equipment.Equipment{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *equipmentApi) queryMine(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	items, err := api.svc.ListMine(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying own equipment")
	}
	if items == nil {
		items = []equipment.Equipment{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *equipmentApi) create(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data equipment.NewEquipment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEquipment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	eq, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating equipment")
	}

	api.activitySvc.Record(ident.UserID, "added equipment %q (qty %d)", eq.Name, eq.Quantity)
	return ctx.JSON(http.StatusCreated, eq)
}

func (api *equipmentApi) update(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data equipment.UpdateEquipment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEquipment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	eq, err := api.svc.Update(ctx.Request().Context(), ident, id, data)
	if err != nil {
		if errors.Cause(err) == equipment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating equipment")
	}

	api.activitySvc.Record(ident.UserID, "updated equipment %q (qty %d)", eq.Name, eq.Quantity)
	return ctx.JSON(http.StatusOK, eq)
}

func (api *equipmentApi) toggleStatus(ctx echo.Context) error {
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
		if errors.Cause(err) == equipment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "toggling equipment status")
	}

	api.activitySvc.Record(ident.UserID, "set equipment %d active=%t", id, isActive)
	return ctx.JSON(http.StatusOK, StatusResponse{ID: id, IsActive: isActive})
}

func (api *equipmentApi) destroy(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	if err := api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		if errors.Cause(err) == equipment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting equipment")
	}

	api.activitySvc.Record(ident.UserID, "deleted equipment %d", id)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *equipmentApi) queryAllocations(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	allocs, err := api.svc.ListAllocations(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying allocations")
	}
	if allocs == nil {
		allocs = []equipment.Allocation{}
	}
	return ctx.JSON(http.StatusOK, allocs)
}

func (api *equipmentApi) queryMyAllocations(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	allocs, err := api.svc.ListMyAllocations(ctx.Request().Context(), ident, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying own allocations")
	}
	if allocs == nil {
		allocs = []equipment.Allocation{}
	}
	return ctx.JSON(http.StatusOK, allocs)
}

func (api *equipmentApi) allocate(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data equipment.NewAllocation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAllocation")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	alloc, err := api.svc.Allocate(ctx.Request().Context(), ident, data)
	if err != nil {
		if errors.Cause(err) == equipment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "allocating equipment")
	}

	api.activitySvc.Record(ident.UserID, "allocated %d of equipment %d to lab %d", alloc.Quantity, alloc.EquipmentID, alloc.LabID)
	return ctx.JSON(http.StatusCreated, alloc)
}

func (api *equipmentApi) updateAllocation(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data equipment.UpdateAllocation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAllocation")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	alloc, err := api.svc.UpdateAllocation(ctx.Request().Context(), ident, id, data)
	if err != nil {
		if errors.Cause(err) == equipment.ErrAllocationNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating allocation")
	}

	api.activitySvc.Record(ident.UserID, "changed allocation %d quantity to %d", alloc.ID, alloc.Quantity)
	return ctx.JSON(http.StatusOK, alloc)
}

func (api *equipmentApi) toggleAllocationStatus(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	isActive, err := api.svc.ToggleAllocationStatus(ctx.Request().Context(), ident, id)
	if err != nil {
		if errors.Cause(err) == equipment.ErrAllocationNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "toggling allocation status")
	}

	api.activitySvc.Record(ident.UserID, "set allocation %d active=%t", id, isActive)
	return ctx.JSON(http.StatusOK, StatusResponse{ID: id, IsActive: isActive})
}

func (api *equipmentApi) destroyAllocation(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	if err := api.svc.DeleteAllocation(ctx.Request().Context(), ident, id); err != nil {
		if errors.Cause(err) == equipment.ErrAllocationNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting allocation")
	}

	api.activitySvc.Record(ident.UserID, "deleted allocation %d", id)
	return ctx.NoContent(http.StatusNoContent)
}
