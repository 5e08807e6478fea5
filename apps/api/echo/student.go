package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/student"
)

type studentApi struct {
	*Deps
}

func registerStudentAPI(g *echo.Group, deps *Deps) {
	api := studentApi{Deps: deps}

	sg := g.Group("/students")
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.PATCH("/:id", api.update)
	sg.DELETE("/:id", api.destroy)

	// enrollments
	sg.GET("/:id/majors", api.queryMajors)
	sg.POST("/:id/majors", api.enroll)
	sg.DELETE("/:id/majors/:majorId", api.unenroll)
	sg.GET("/:id/majors/:majorId/outstanding", api.outstanding)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	fetch := func(c context.Context) ([]student.Student, error) {
		return api.StudentSvc.Query(c, *filter, ordering.Orderings)
	}
	var students []student.Student
	var err error
	if filter.IDs == nil && filter.Search == "" && filter.CreatedBy == "" && ordering.Orderings == nil {
		students, err = querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.StudentList(), fetch)
	} else {
		students, err = fetch(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, orEmpty(students))
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var s student.Student
	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Students, Op: querycache.Create},
		activity.Entry{Action: activity.ActionCreate, Details: data.FirstName + " " + data.LastName},
		func(c context.Context) (string, error) {
			var err error
			s, err = api.StudentSvc.Create(c, data, usr.ID)
			return s.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id := ctx.Param("id")
	s, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.StudentDetail(id),
		func(c context.Context) (student.Student, error) { return api.StudentSvc.GetByID(c, id) })
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	id := ctx.Param("id")
	var s student.Student
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Students, Op: querycache.Update, ID: id},
		activity.Entry{Action: activity.ActionUpdate},
		func(c context.Context) (string, error) {
			var err error
			s, err = api.StudentSvc.Update(c, id, data)
			return id, err
		})
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Students, Op: querycache.Delete, ID: id},
		activity.Entry{Action: activity.ActionDelete},
		func(c context.Context) (string, error) { return id, api.StudentSvc.Delete(c, id) })
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *studentApi) queryMajors(ctx echo.Context) error {
	id := ctx.Param("id")
	sms, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.StudentMajors(id),
		func(c context.Context) ([]ledger.StudentMajor, error) { return api.LedgerSvc.StudentMajors(c, id) })
	if err != nil {
		return errors.Wrap(err, "querying student majors")
	}
	return ctx.JSON(http.StatusOK, orEmpty(sms))
}

func (api *studentApi) enroll(ctx echo.Context) error {
	var data ledger.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	data.StudentID = ctx.Param("id")
	if err := data.Validate(api.Validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var resp EnrollmentResponse
	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Students, Op: querycache.Enroll, ID: data.StudentID, MajorID: data.MajorID, UserID: usr.ID},
		activity.Entry{Action: activity.ActionEnroll, Entity: "enrollments", Details: "major " + data.MajorID + " paid " + data.PaidAmount.String()},
		func(c context.Context) (string, error) {
			var err error
			resp.Enrollment, resp.Payment, err = api.LedgerSvc.Enroll(c, data, usr.ID)
			return data.StudentID, err
		})
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *studentApi) unenroll(ctx echo.Context) error {
	id, majorID := ctx.Param("id"), ctx.Param("majorId")
	// every payment row goes away with the enrollment
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Students, Op: querycache.Unenroll, ID: id, MajorID: majorID},
		activity.Entry{Action: activity.ActionUnenroll, Entity: "enrollments", Details: "major " + majorID},
		func(c context.Context) (string, error) { return id, api.LedgerSvc.Unenroll(c, id, majorID) })
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) outstanding(ctx echo.Context) error {
	id, majorID := ctx.Param("id"), ctx.Param("majorId")
	out, err := api.LedgerSvc.Outstanding(ctx.Request().Context(), id, majorID)
	if err != nil {
		return errors.Wrap(err, "computing outstanding balance")
	}
	return ctx.JSON(http.StatusOK, OutstandingResponse{StudentID: id, MajorID: majorID, Outstanding: out})
}
