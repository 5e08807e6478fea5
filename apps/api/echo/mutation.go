package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

// writeFunc performs a write and returns the ID of the entity it touched.
type writeFunc func(ctx context.Context) (entityID string, err error)

// mutate runs write through the cache so that the keys m covers are invalidated once it succeeds,
// and records the action in the activity log. The actor defaults to the context user.
func (d *Deps) mutate(ctx echo.Context, m querycache.Mutation, entry activity.Entry, write writeFunc) error {
	var actor user.User
	if entry.UserID == "" {
		usr, err := getContextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		actor = usr
		entry.UserID = usr.ID
	} else {
		actor.ID = entry.UserID
	}
	if entry.Entity == "" {
		entry.Entity = m.Entity.String()
	}

	return d.Cache.Mutate(ctx.Request().Context(), m, func(c context.Context) error {
		id, err := write(c)
		if err != nil {
			return err
		}
		if entry.EntityID == "" {
			entry.EntityID = id
		}
		// a lost log entry must not undo a committed write
		if _, err := d.ActivitySvc.Record(c, entry); err != nil {
			d.Logger.Error("recording activity", err, actor)
		}
		return nil
	})
}
