package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

// activeUserMiddleware loads the token's user into the context. Tokens of deleted or deactivated
// users are rejected.
func activeUserMiddleware(cache *querycache.Cache, svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr, err := querycache.ReadFresh(ctx.Request().Context(), cache, querycache.CurrentUser(claims.Subject),
				func(c context.Context) (user.User, error) { return svc.GetByID(c, claims.Subject) })
			if err != nil {
				if core.IsNotFound(err) {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(userContextKey, usr)
			return next(ctx)
		}
	}
}

// superAdminMiddleware restricts a route to super admins.
func superAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if !usr.IsSuperAdmin() {
			return errHttpForbidden
		}
		return next(ctx)
	}
}
