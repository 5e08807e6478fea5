// Package activity keeps the log of what staff members did.
package activity

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
)

type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionEnroll     Action = "enroll"
	ActionUnenroll   Action = "unenroll"
	ActionAmend      Action = "amend"
	ActionAssociate  Action = "associate"
	ActionDissociate Action = "dissociate"
	ActionLogin      Action = "login"
)

// Log is one recorded action. UserName is the actor's display name, filled on read.
type Log struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" db:"user_name"`
	Action    Action    `json:"action" db:"action"`
	Entity    string    `json:"entity" db:"entity"`
	EntityID  string    `json:"entity_id" db:"entity_id"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Entry describes an action to record.
type Entry struct {
	UserID   string
	Action   Action
	Entity   string
	EntityID string
	Details  string
}

type QueryFilter struct {
	UserID string `query:"user_id"`
	Limit  int    `query:"limit"` // zero means no limit
}

type (
	Repository interface {
		CreateLog(ctx context.Context, l Log, exec ...core.DBExecutor) (Log, error)
		// QueryLogs returns the logs newest first.
		QueryLogs(ctx context.Context, filter QueryFilter) ([]Log, error)
		CountLogs(ctx context.Context, filter QueryFilter) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Record(ctx context.Context, e Entry, exec ...core.DBExecutor) (Log, error) {
	l, err := svc.repo.CreateLog(ctx, Log{
		ID:        core.NewID(),
		UserID:    e.UserID,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Details:   e.Details,
		CreatedAt: core.Now(),
	}, exec...)
	if err != nil {
		return Log{}, errors.Wrap(err, "recording activity")
	}
	return l, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Log, error) {
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	return svc.repo.QueryLogs(ctx, filter)
}

func (svc *Service) Count(ctx context.Context, filter QueryFilter) (int, error) {
	return svc.repo.CountLogs(ctx, filter)
}
