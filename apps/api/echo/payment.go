package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
)

type paymentApi struct {
	*Deps
}

func registerPaymentAPI(g *echo.Group, deps *Deps) {
	api := paymentApi{Deps: deps}

	pg := g.Group("/payments")
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/user/:id", api.queryByUser)
	pg.GET("/:id", api.retrieve)
	pg.PATCH("/:id", api.amend)
	pg.DELETE("/:id", api.destroy)
}

func (api *paymentApi) query(ctx echo.Context) error {
	filter := new(ledger.PaymentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []ledger.Payment{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	fetch := func(c context.Context) ([]ledger.Payment, error) {
		return api.LedgerSvc.QueryPayments(c, *filter, ordering.Orderings)
	}
	var payments []ledger.Payment
	var err error
	isEmpty := filter.IDs == nil && filter.StudentID == "" && filter.MajorID == "" && filter.HandledBy == "" && !filter.LatestOnly
	if isEmpty && ordering.Orderings == nil {
		payments, err = querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.PaymentList(), fetch)
	} else {
		payments, err = fetch(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, orEmpty(payments))
}

// queryByUser lists the payments a staff member handled. Admins may only list their own.
func (api *paymentApi) queryByUser(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id := ctx.Param("id")
	if id != usr.ID && !usr.IsSuperAdmin() {
		return errHttpForbidden
	}

	payments, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.PaymentsByUser(id),
		func(c context.Context) ([]ledger.Payment, error) {
			return api.LedgerSvc.QueryPayments(c, ledger.PaymentFilter{HandledBy: id}, nil)
		})
	if err != nil {
		return errors.Wrap(err, "querying user payments")
	}
	return ctx.JSON(http.StatusOK, orEmpty(payments))
}

func (api *paymentApi) create(ctx echo.Context) error {
	var data ledger.NewInstallment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstallment")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var pmt ledger.Payment
	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Payments, Op: querycache.Create, StudentID: data.StudentID, MajorID: data.MajorID, UserID: usr.ID},
		activity.Entry{Action: activity.ActionCreate, Details: "installment " + data.Amount.String()},
		func(c context.Context) (string, error) {
			var err error
			pmt, err = api.LedgerSvc.RecordInstallment(c, data, usr.ID)
			return pmt.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "recording installment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	id := ctx.Param("id")
	pmt, err := api.LedgerSvc.GetPayment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding payment by ID")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

// amend sets the running total of a payment row. The later rows of the enrollment shift with it.
func (api *paymentApi) amend(ctx echo.Context) error {
	var data ledger.AmendPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AmendPayment")
	}
	orig, err := api.LedgerSvc.GetPayment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding payment by ID")
	}

	// the later rows may have been handled by anyone: UserID stays unknown
	var pmt ledger.Payment
	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Payments, Op: querycache.Update, ID: orig.ID, StudentID: orig.StudentID, MajorID: orig.MajorID},
		activity.Entry{Action: activity.ActionAmend, Details: "amount paid " + orig.AmountPaid.String() + " -> " + data.AmountPaid.String()},
		func(c context.Context) (string, error) {
			var err error
			pmt, err = api.LedgerSvc.AmendPayment(c, orig.ID, data)
			return orig.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "amending payment")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) destroy(ctx echo.Context) error {
	orig, err := api.LedgerSvc.GetPayment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding payment by ID")
	}

	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Payments, Op: querycache.Delete, ID: orig.ID, StudentID: orig.StudentID, MajorID: orig.MajorID},
		activity.Entry{Action: activity.ActionDelete, Details: "installment " + orig.Installment.String()},
		func(c context.Context) (string, error) {
			_, err := api.LedgerSvc.DeletePayment(c, orig.ID)
			return orig.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
