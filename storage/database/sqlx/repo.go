// Package sqlxrepos implements the domain repositories on top of jmoiron/sqlx. Queries are written
// with `?` placeholders and rebound for the driver in use (postgres or sqlite3).
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps sql "no rows" err to the domain's not found error.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int64, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// conditions accumulates the AND-ed conditions of a WHERE clause.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

// search matches term case-insensitively against any of columns.
func (c *conditions) search(term string, columns ...string) {
	if term == "" {
		return
	}
	pattern := "%" + strings.ToLower(term) + "%"
	ors := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		ors = append(ors, "LOWER("+col+") LIKE ?")
		args = append(args, pattern)
	}
	c.add("("+strings.Join(ors, " OR ")+")", args...)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// orderBy renders an ORDER BY clause. Only the fields of allowed are kept; allowed maps an API field
// name to its column.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(orderList) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
