package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

type userApi struct {
	*Deps
}

func registerUserAPI(g *echo.Group, deps *Deps, authed []echo.MiddlewareFunc) {
	api := userApi{Deps: deps}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/login` & `/password-reset`
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", authed...)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)

	sg := ag.Group("", superAdminMiddleware)
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/roles", api.queryRoles)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	usr, claims, err := authenticate(ctx.Request().Context(), api.Conf, data.Username, data.Password, api.UserSvc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(api.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Users, Op: querycache.Update, ID: usr.ID},
		activity.Entry{UserID: usr.ID, Action: activity.ActionLogin, EntityID: usr.ID},
		func(c context.Context) (string, error) {
			_, err := api.UserSvc.SetLastLogin(c, usr)
			return usr.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	if err := api.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	if err := api.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.Conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.Validate, api.UserSvc); err != nil {
		return err
	}

	var usr user.User
	err := api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Users, Op: querycache.Create},
		activity.Entry{Action: activity.ActionCreate, Details: data.Username},
		func(c context.Context) (string, error) {
			var err error
			usr, err = api.UserSvc.Create(c, data)
			return usr.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "creating user")
	}

	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	fetch := func(c context.Context) ([]user.User, error) {
		return api.UserSvc.Query(c, *filter, ordering.Orderings)
	}
	var users []user.User
	var err error
	if filter.IsEmpty() && ordering.Orderings == nil {
		users, err = querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.UserList(), fetch)
	} else {
		users, err = fetch(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	// ctxUser cannot lock themselves out
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID && ((data.IsActive != nil && !*data.IsActive) || (data.Role != "" && data.Role != usr.Role)) {
		return errHttpForbidden
	}

	if err = data.Validate(ctx.Request().Context(), usr, api.Validate, api.UserSvc); err != nil {
		return err
	}

	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Users, Op: querycache.Update, ID: usr.ID},
		activity.Entry{Action: activity.ActionUpdate, EntityID: usr.ID, Details: usr.Username},
		func(c context.Context) (string, error) {
			var err error
			usr, err = api.UserSvc.Update(c, usr, data)
			return usr.ID, err
		})
	if err != nil {
		return errors.Wrap(err, "updating user")
	}

	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := api.getUser(ctx)
	if err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	err = api.mutate(ctx,
		querycache.Mutation{Entity: querycache.Users, Op: querycache.Delete, ID: usr.ID},
		activity.Entry{Action: activity.ActionDelete, EntityID: usr.ID, Details: usr.Username},
		func(c context.Context) (string, error) {
			return usr.ID, api.UserSvc.Delete(c, usr.ID)
		})
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) getUser(ctx echo.Context) (user.User, error) {
	id := ctx.Param("id")
	usr, err := querycache.ReadFresh(ctx.Request().Context(), api.Cache, querycache.UserDetail(id),
		func(c context.Context) (user.User, error) { return api.UserSvc.GetByID(c, id) })
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
