package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/money"
	"github.com/RouahImad/Project-epg-sub000/core/student"
	"github.com/RouahImad/Project-epg-sub000/core/user"
	"github.com/RouahImad/Project-epg-sub000/storage/database"
)

// PrepareDB opens a migrated in-memory sqlite database, closed when the test ends.
func PrepareDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Open(&core.Config{Database: core.DatabaseConfig{Engine: database.Sqlite, Name: ":memory:"}})
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t testing.TB,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateMajorType(t testing.TB, repo catalog.Repository, name string) catalog.MajorType {
	t.Helper()
	now := core.Now()
	mt, err := repo.CreateMajorType(context.Background(), catalog.MajorType{
		ID:        core.NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateMajorType() failed: %v", err)
	}
	return mt
}

func CreateMajor(t testing.TB, repo catalog.Repository, typeID, name string, price money.Money) catalog.Major {
	t.Helper()
	now := core.Now()
	m, err := repo.CreateMajor(context.Background(), catalog.Major{
		ID:          core.NewID(),
		Name:        name,
		MajorTypeID: typeID,
		Price:       price,
		Duration:    12,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateMajor() failed: %v", err)
	}
	return m
}

// CreateTax creates a tax, associated with the given majors.
func CreateTax(t testing.TB, repo catalog.Repository, name string, amount money.Money, majorIDs ...string) catalog.Tax {
	t.Helper()
	ctx := context.Background()
	now := core.Now()
	tax, err := repo.CreateTax(ctx, catalog.Tax{
		ID:        core.NewID(),
		Name:      name,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTax() failed: %v", err)
	}
	for _, id := range majorIDs {
		if err = repo.AddMajorTax(ctx, id, tax.ID); err != nil {
			t.Fatalf("CreateTax() failed: %v", err)
		}
	}
	return tax
}

func CreateStudent(t testing.TB, repo student.Repository, firstName, lastName, createdBy string) student.Student {
	t.Helper()
	now := core.Now()
	s, err := repo.CreateStudent(context.Background(), student.Student{
		ID:        core.NewID(),
		FirstName: firstName,
		LastName:  lastName,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}
