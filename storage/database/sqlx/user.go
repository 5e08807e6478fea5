package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

const userColumns = "id, name, username, email, is_active, role, password_hash, created_at, updated_at, last_login"

var userOrdering = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"is_active":  "is_active",
	"created_at": "created_at",
	"last_login": "last_login",
}

// userRow keeps the password hash as text so both drivers store it the same way.
type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	Role         string    `db:"role"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Role:         string(usr.Role),
		PasswordHash: string(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    usr.LastLogin,
	}
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:        row.ID,
		Name:      row.Name,
		Username:  row.Username,
		Email:     row.Email,
		IsActive:  row.IsActive,
		Role:      user.Role(row.Role),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
		LastLogin: row.LastLogin,
	}
	if row.PasswordHash != "" {
		usr.PasswordHash = []byte(row.PasswordHash)
	}
	if usr.LastLogin.Valid {
		usr.LastLogin.Time = usr.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	check := func(column, value string, errExists error) error {
		if value == "" {
			return nil
		}
		var conds conditions
		conds.add(column+" = ?", value)
		if len(excludedUsers) > 0 {
			ids := make([]string, 0, len(excludedUsers))
			for _, u := range excludedUsers {
				ids = append(ids, u.ID)
			}
			conds.add("id NOT IN (?)", ids)
		}

		var count int
		if err := get(ctx, repo.exec, &count, "SELECT COUNT(*) FROM users"+conds.where(), conds.args...); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if count > 0 {
			return errExists
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	row := toUserRow(usr)
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Role, row.PasswordHash,
		row.CreatedAt, row.UpdatedAt, row.LastLogin)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var conds conditions
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	conds.search(filter.Search, "name", "username", "email")
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		conds.add("role IN (?)", roles)
	}
	if filter.IsActive != nil {
		conds.add("is_active = ?", *filter.IsActive)
	}

	var rows []userRow
	q := "SELECT " + userColumns + " FROM users" + conds.where() + orderBy(ordering, userOrdering, "created_at ASC, id ASC")
	if err := selectAll(ctx, repo.exec, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo userRepository) getUser(ctx context.Context, where, msg string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := get(ctx, repo.exec, &row, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, msg)
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = ?", "finding user by ID", id)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "username = ?", "finding user by username", username)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "email = ?", "finding user by email", email)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "username = ? OR email = ?", "finding user by username or email", username, username)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := toUserRow(usr)
	n, err := execute(ctx, repo.getExec(exec),
		`UPDATE users SET name = ?, username = ?, email = ?, is_active = ?, role = ?, password_hash = ?,
		updated_at = ?, last_login = ? WHERE id = ?`,
		row.Name, row.Username, row.Email, row.IsActive, row.Role, row.PasswordHash,
		row.UpdatedAt, row.LastLogin, row.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := execute(ctx, repo.exec, "DELETE FROM users WHERE id IN (?)", ids); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
