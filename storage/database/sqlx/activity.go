package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/activity"
)

type activityRepository struct {
	repository
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(exec core.DBExecutor) *activityRepository {
	return &activityRepository{repository{exec: exec}}
}

func (repo activityRepository) CreateLog(ctx context.Context, l activity.Log, exec ...core.DBExecutor) (activity.Log, error) {
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO activity_logs (id, user_id, action, entity, entity_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		l.ID, l.UserID, string(l.Action), l.Entity, l.EntityID, l.Details, l.CreatedAt)
	if err != nil {
		return activity.Log{}, errors.Wrap(err, "inserting activity log")
	}
	return l, nil
}

func (repo activityRepository) QueryLogs(ctx context.Context, filter activity.QueryFilter) ([]activity.Log, error) {
	var conds conditions
	if filter.UserID != "" {
		conds.add("l.user_id = ?", filter.UserID)
	}
	q := `SELECT l.id, l.user_id, COALESCE(u.name, '') AS user_name, l.action, l.entity, l.entity_id, l.details, l.created_at
		FROM activity_logs l LEFT JOIN users u ON u.id = l.user_id` + conds.where() + " ORDER BY l.created_at DESC, l.id DESC"
	args := conds.args
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	logs := make([]activity.Log, 0)
	if err := selectAll(ctx, repo.exec, &logs, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying activity logs")
	}
	return logs, nil
}

func (repo activityRepository) CountLogs(ctx context.Context, filter activity.QueryFilter) (int, error) {
	var conds conditions
	if filter.UserID != "" {
		conds.add("user_id = ?", filter.UserID)
	}
	var count int
	if err := get(ctx, repo.exec, &count, "SELECT COUNT(*) FROM activity_logs"+conds.where(), conds.args...); err != nil {
		return 0, errors.Wrap(err, "counting activity logs")
	}
	return count, nil
}
