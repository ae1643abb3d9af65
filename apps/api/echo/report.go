package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core"
	reportsvc "github.com/trezcool/maabara/services/report"
)

type reportApi struct {
	svc reportsvc.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc reportsvc.Service) {
	api := reportApi{svc: svc}
	g.GET("/reports/:type", api.generate, jwt)
}

func (api *reportApi) generate(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	typ := reportsvc.Type(ctx.Param("type"))
	param := ctx.QueryParam("parameter")

	name, csv, err := api.svc.Generate(ctx.Request().Context(), ident, typ, param)
	if err != nil {
		switch errors.Cause(err) {
		case reportsvc.ErrUnknownType:
			return errHttpNotFound
		case reportsvc.ErrMissingParameter, reportsvc.ErrBadParameter:
			return core.NewValidationError(errors.Cause(err))
		}
		return errors.Wrap(err, "generating report")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Blob(http.StatusOK, "text/csv", csv)
}
