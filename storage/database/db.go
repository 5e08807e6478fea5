package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/RouahImad/Project-epg-sub000/assets"
	"github.com/RouahImad/Project-epg-sub000/core"
)

const (
	Postgres = "postgres"
	Sqlite   = "sqlite3"
)

func postgresURL(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   Postgres,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SqliteDSN returns the data source name of a sqlite database file (":memory:" for an in-memory one)
// with foreign keys enforced.
func SqliteDSN(name string) string {
	if name == ":memory:" {
		name = "file::memory:"
	}
	return name + "?_foreign_keys=on"
}

// Open connects to the configured database. A sqlite database is served by a single connection.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case Postgres:
		return sqlx.Open(Postgres, postgresURL(conf.Database.Name, false, conf))
	case Sqlite:
		db, err := sqlx.Open(Sqlite, SqliteDSN(conf.Database.Name))
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRow(query, args...).Scan(&found)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}
	return found, nil
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user and database. A sqlite database is created on open.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != Postgres {
		return nil
	}

	// connect as admin
	db, err := sql.Open(Postgres, postgresURL("postgres", true, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := sql.Open(Postgres, postgresURL("postgres", false, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

// RunMigrations runs a goose command ("up", "down", "status", ...) with the embedded migrations.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(assets.Migrations)
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	if err := goose.Run(command, db.DB, assets.MigrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations %s", command)
	}
	return nil
}

func Migrate(db *sqlx.DB) error {
	return RunMigrations(db, "up")
}
