package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
)

type catalogApi struct {
	*Deps
}

// registerCatalogAPI mounts program types, majors and taxes. Reads are open to every staff member,
// writes are reserved to super admins.
func registerCatalogAPI(g *echo.Group, deps *Deps) {
	api := catalogApi{Deps: deps}
	super := superAdminMiddleware

	tg := g.Group("/program-types")
	tg.GET("", api.queryTypes)
	tg.POST("", api.createType, super)
	tg.GET("/:id", api.retrieveType)
	tg.PATCH("/:id", api.updateType, super)
	tg.DELETE("/:id", api.destroyType, super)
	tg.GET("/:id/majors", api.queryTypeMajors)

	mg := g.Group("/majors")
	mg.GET("", api.queryMajors)
	mg.POST("", api.createMajor, super)
	mg.GET("/grouped", api.groupedMajors)
	mg.GET("/:id", api.retrieveMajor)
	mg.PATCH("/:id", api.updateMajor, super)
	mg.DELETE("/:id", api.destroyMajor, super)
	mg.GET("/:id/total-due", api.totalDue)
	mg.GET("/:id/taxes", api.queryMajorTaxes)
	mg.POST("/:id/taxes", api.associateTax, super)
	mg.DELETE("/:id/taxes/:taxId", api.dissociateTax, super)

	xg := g.Group("/taxes")
	xg.GET("", api.queryTaxes)
	xg.POST("", api.createTax, super)
	xg.GET("/:id", api.retrieveTax)
	xg.PATCH("/:id", api.updateTax, super)
	xg.DELETE("/:id", api.destroyTax, super)
}

// Program types

func (api *catalogApi) queryTypes(ctx echo.Context) error {
	types, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.ProgramTypeList(), api.CatalogSvc.QueryTypes)
	if err != nil {
		return errors.Wrap(err, "querying program types")
	}
	return ctx.JSON(http.StatusOK, orEmpty(types))
}

func (api *catalogApi) createType(ctx echo.Context) error {
	var data catalog.NewMajorType
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMajorType")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	var mt catalog.MajorType
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.ProgramTypes, Op: querycache.Create},
		activity.Entry{Action: activity.ActionCreate, Details: data.Name},
		func(c context.Context) (string, error) {
			var err error
			mt, err = api.CatalogSvc.CreateType(c, data)
			return mt.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "creating program type")
	}
	return ctx.JSON(http.StatusCreated, mt)
}

func (api *catalogApi) retrieveType(ctx echo.Context) error {
	id := ctx.Param("id")
	mt, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.ProgramTypeDetail(id),
		func(c context.Context) (catalog.MajorType, error) { return api.CatalogSvc.GetType(c, id) })
	if err != nil {
		return errors.Wrap(err, "finding program type by ID")
	}
	return ctx.JSON(http.StatusOK, mt)
}

func (api *catalogApi) updateType(ctx echo.Context) error {
	var data catalog.UpdateMajorType
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMajorType")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	id := ctx.Param("id")
	var mt catalog.MajorType
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.ProgramTypes, Op: querycache.Update, ID: id},
		activity.Entry{Action: activity.ActionUpdate},
		func(c context.Context) (string, error) {
			var err error
			mt, err = api.CatalogSvc.UpdateType(c, id, data)
			return id, err
		})
	if err != nil {
		return errors.Wrap(err, "updating program type")
	}
	return ctx.JSON(http.StatusOK, mt)
}

func (api *catalogApi) destroyType(ctx echo.Context) error {
	id := ctx.Param("id")
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.ProgramTypes, Op: querycache.Delete, ID: id},
		activity.Entry{Action: activity.ActionDelete},
		func(c context.Context) (string, error) { return id, api.CatalogSvc.DeleteType(c, id) })
	if err != nil {
		return errors.Wrap(err, "deleting program type")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryTypeMajors(ctx echo.Context) error {
	id := ctx.Param("id")
	majors, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.ProgramTypeMajors(id),
		func(c context.Context) ([]catalog.Major, error) { return api.CatalogSvc.QueryTypeMajors(c, id) })
	if err != nil {
		return errors.Wrap(err, "querying program type majors")
	}
	return ctx.JSON(http.StatusOK, orEmpty(majors))
}

// Majors

func (api *catalogApi) queryMajors(ctx echo.Context) error {
	filter := new(catalog.MajorFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Major{})
	}
	filter.Clean()
	filter.WithDeleted = false
	ordering := new(Ordering)
	ordering.Bind(ctx)

	fetch := func(c context.Context) ([]catalog.Major, error) {
		return api.CatalogSvc.QueryMajors(c, *filter, ordering.Orderings)
	}
	var majors []catalog.Major
	var err error
	if filter.IDs == nil && filter.Search == "" && filter.MajorTypeID == "" && ordering.Orderings == nil {
		majors, err = querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.MajorList(), fetch)
	} else {
		majors, err = fetch(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying majors")
	}
	return ctx.JSON(http.StatusOK, orEmpty(majors))
}

func (api *catalogApi) createMajor(ctx echo.Context) error {
	var data catalog.NewMajor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMajor")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	var m catalog.Major
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Majors, Op: querycache.Create},
		activity.Entry{Action: activity.ActionCreate, Details: data.Name},
		func(c context.Context) (string, error) {
			var err error
			m, err = api.CatalogSvc.CreateMajor(c, data)
			return m.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "creating major")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *catalogApi) groupedMajors(ctx echo.Context) error {
	grouped, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.MajorsGrouped(), api.CatalogSvc.GroupedMajors)
	if err != nil {
		return errors.Wrap(err, "grouping majors")
	}
	return ctx.JSON(http.StatusOK, orEmpty(grouped))
}

func (api *catalogApi) retrieveMajor(ctx echo.Context) error {
	id := ctx.Param("id")
	m, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.MajorDetail(id),
		func(c context.Context) (catalog.Major, error) { return api.CatalogSvc.GetMajor(c, id) })
	if err != nil {
		return errors.Wrap(err, "finding major by ID")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *catalogApi) updateMajor(ctx echo.Context) error {
	var data catalog.UpdateMajor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMajor")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	id := ctx.Param("id")
	var m catalog.Major
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Majors, Op: querycache.Update, ID: id},
		activity.Entry{Action: activity.ActionUpdate},
		func(c context.Context) (string, error) {
			var err error
			m, err = api.CatalogSvc.UpdateMajor(c, id, data)
			return id, err
		})
	if err != nil {
		return errors.Wrap(err, "updating major")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *catalogApi) destroyMajor(ctx echo.Context) error {
	id := ctx.Param("id")
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Majors, Op: querycache.Delete, ID: id},
		activity.Entry{Action: activity.ActionDelete},
		func(c context.Context) (string, error) { return id, api.CatalogSvc.DeleteMajor(c, id) })
	if err != nil {
		return errors.Wrap(err, "deleting major")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) totalDue(ctx echo.Context) error {
	id := ctx.Param("id")
	total, err := api.LedgerSvc.Engine().ComputeTotalDue(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "computing total due")
	}
	return ctx.JSON(http.StatusOK, TotalDueResponse{MajorID: id, TotalDue: total})
}

// Major <-> Tax

func (api *catalogApi) queryMajorTaxes(ctx echo.Context) error {
	id := ctx.Param("id")
	taxes, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.MajorTaxes(id),
		func(c context.Context) ([]catalog.Tax, error) { return api.CatalogSvc.QueryMajorTaxes(c, id) })
	if err != nil {
		return errors.Wrap(err, "querying major taxes")
	}
	return ctx.JSON(http.StatusOK, orEmpty(taxes))
}

func (api *catalogApi) associateTax(ctx echo.Context) error {
	var data catalog.AssociateTax
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssociateTax")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	id := ctx.Param("id")
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Majors, Op: querycache.Associate, ID: id},
		activity.Entry{Action: activity.ActionAssociate, Details: "tax " + data.TaxID},
		func(c context.Context) (string, error) { return id, api.CatalogSvc.AssociateTax(c, id, data.TaxID) })
	if err != nil {
		return errors.Wrap(err, "associating tax")
	}
	return ctx.JSON(http.StatusCreated, catalog.MajorTax{MajorID: id, TaxID: data.TaxID})
}

func (api *catalogApi) dissociateTax(ctx echo.Context) error {
	id, taxID := ctx.Param("id"), ctx.Param("taxId")
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Majors, Op: querycache.Dissociate, ID: id},
		activity.Entry{Action: activity.ActionDissociate, Details: "tax " + taxID},
		func(c context.Context) (string, error) { return id, api.CatalogSvc.DissociateTax(c, id, taxID) })
	if err != nil {
		return errors.Wrap(err, "dissociating tax")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Taxes

func (api *catalogApi) queryTaxes(ctx echo.Context) error {
	filter := new(catalog.TaxFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Tax{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	fetch := func(c context.Context) ([]catalog.Tax, error) {
		return api.CatalogSvc.QueryTaxes(c, *filter, ordering.Orderings)
	}
	var taxes []catalog.Tax
	var err error
	if filter.IDs == nil && filter.Search == "" && ordering.Orderings == nil {
		taxes, err = querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.TaxList(), fetch)
	} else {
		taxes, err = fetch(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying taxes")
	}
	return ctx.JSON(http.StatusOK, orEmpty(taxes))
}

func (api *catalogApi) createTax(ctx echo.Context) error {
	var data catalog.NewTax
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTax")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	var t catalog.Tax
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Taxes, Op: querycache.Create},
		activity.Entry{Action: activity.ActionCreate, Details: data.Name},
		func(c context.Context) (string, error) {
			var err error
			t, err = api.CatalogSvc.CreateTax(c, data)
			return t.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "creating tax")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *catalogApi) retrieveTax(ctx echo.Context) error {
	id := ctx.Param("id")
	t, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.TaxDetail(id),
		func(c context.Context) (catalog.Tax, error) { return api.CatalogSvc.GetTax(c, id) })
	if err != nil {
		return errors.Wrap(err, "finding tax by ID")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *catalogApi) updateTax(ctx echo.Context) error {
	var data catalog.UpdateTax
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTax")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	id := ctx.Param("id")
	var t catalog.Tax
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Taxes, Op: querycache.Update, ID: id},
		activity.Entry{Action: activity.ActionUpdate},
		func(c context.Context) (string, error) {
			var err error
			t, err = api.CatalogSvc.UpdateTax(c, id, data)
			return id, err
		})
	if err != nil {
		return errors.Wrap(err, "updating tax")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *catalogApi) destroyTax(ctx echo.Context) error {
	id := ctx.Param("id")
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Taxes, Op: querycache.Delete, ID: id},
		activity.Entry{Action: activity.ActionDelete},
		func(c context.Context) (string, error) { return id, api.CatalogSvc.DeleteTax(c, id) })
	if err != nil {
		return errors.Wrap(err, "deleting tax")
	}
	return ctx.NoContent(http.StatusNoContent)
}
