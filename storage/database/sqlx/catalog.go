package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
)

const (
	majorTypeColumns = "id, name, description, created_at, updated_at"
	majorColumns     = "id, name, major_type_id, price, duration, description, created_at, updated_at, deleted_at"
	taxColumns       = "id, name, amount, description, created_at, updated_at, deleted_at"
)

var (
	majorOrdering = map[string]string{
		"name":       "name",
		"price":      "price",
		"duration":   "duration",
		"created_at": "created_at",
	}
	taxOrdering = map[string]string{
		"name":       "name",
		"amount":     "amount",
		"created_at": "created_at",
	}
)

type catalogRepository struct {
	repository
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(exec core.DBExecutor) *catalogRepository {
	return &catalogRepository{repository{exec: exec}}
}

// Program types

func (repo catalogRepository) CreateMajorType(ctx context.Context, mt catalog.MajorType) (catalog.MajorType, error) {
	_, err := execute(ctx, repo.exec,
		"INSERT INTO major_types ("+majorTypeColumns+") VALUES (?, ?, ?, ?, ?)",
		mt.ID, mt.Name, mt.Description, mt.CreatedAt, mt.UpdatedAt)
	if err != nil {
		return catalog.MajorType{}, errors.Wrap(err, "inserting program type")
	}
	return mt, nil
}

func (repo catalogRepository) QueryMajorTypes(ctx context.Context) ([]catalog.MajorType, error) {
	types := make([]catalog.MajorType, 0)
	if err := selectAll(ctx, repo.exec, &types, "SELECT "+majorTypeColumns+" FROM major_types ORDER BY name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying program types")
	}
	return types, nil
}

func (repo catalogRepository) GetMajorTypeByID(ctx context.Context, id string) (catalog.MajorType, error) {
	var mt catalog.MajorType
	if err := get(ctx, repo.exec, &mt, "SELECT "+majorTypeColumns+" FROM major_types WHERE id = ?", id); err != nil {
		return catalog.MajorType{}, trapNoRowsErr(err, catalog.ErrTypeNotFound, "finding program type by ID")
	}
	return mt, nil
}

func (repo catalogRepository) GetMajorTypeByName(ctx context.Context, name string) (catalog.MajorType, error) {
	var mt catalog.MajorType
	q := "SELECT " + majorTypeColumns + " FROM major_types WHERE LOWER(name) = LOWER(?) LIMIT 1"
	if err := get(ctx, repo.exec, &mt, q, name); err != nil {
		return catalog.MajorType{}, trapNoRowsErr(err, catalog.ErrTypeNotFound, "finding program type by name")
	}
	return mt, nil
}

func (repo catalogRepository) UpdateMajorType(ctx context.Context, mt catalog.MajorType) (catalog.MajorType, error) {
	n, err := execute(ctx, repo.exec,
		"UPDATE major_types SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		mt.Name, mt.Description, mt.UpdatedAt, mt.ID)
	if err != nil {
		return catalog.MajorType{}, errors.Wrap(err, "updating program type")
	}
	if n == 0 {
		return catalog.MajorType{}, catalog.ErrTypeNotFound
	}
	return mt, nil
}

func (repo catalogRepository) DeleteMajorType(ctx context.Context, id string) error {
	n, err := execute(ctx, repo.exec, "DELETE FROM major_types WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting program type")
	}
	if n == 0 {
		return catalog.ErrTypeNotFound
	}
	return nil
}

// Majors

func (repo catalogRepository) CreateMajor(ctx context.Context, m catalog.Major) (catalog.Major, error) {
	_, err := execute(ctx, repo.exec,
		"INSERT INTO majors ("+majorColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.Name, m.MajorTypeID, m.Price, m.Duration, m.Description, m.CreatedAt, m.UpdatedAt, m.DeletedAt)
	if err != nil {
		return catalog.Major{}, errors.Wrap(err, "inserting major")
	}
	return m, nil
}

func majorConditions(filter catalog.MajorFilter) conditions {
	var conds conditions
	if !filter.WithDeleted {
		conds.add("deleted_at IS NULL")
	}
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	conds.search(filter.Search, "name", "description")
	if filter.MajorTypeID != "" {
		conds.add("major_type_id = ?", filter.MajorTypeID)
	}
	return conds
}

func (repo catalogRepository) QueryMajors(ctx context.Context, filter catalog.MajorFilter, ordering []core.DBOrdering) ([]catalog.Major, error) {
	conds := majorConditions(filter)
	majors := make([]catalog.Major, 0)
	q := "SELECT " + majorColumns + " FROM majors" + conds.where() + orderBy(ordering, majorOrdering, "name ASC, id ASC")
	if err := selectAll(ctx, repo.exec, &majors, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying majors")
	}
	return majors, nil
}

func (repo catalogRepository) CountMajors(ctx context.Context, filter catalog.MajorFilter) (int, error) {
	conds := majorConditions(filter)
	var count int
	if err := get(ctx, repo.exec, &count, "SELECT COUNT(*) FROM majors"+conds.where(), conds.args...); err != nil {
		return 0, errors.Wrap(err, "counting majors")
	}
	return count, nil
}

func (repo catalogRepository) GetMajorByID(ctx context.Context, id string) (catalog.Major, error) {
	var m catalog.Major
	q := "SELECT " + majorColumns + " FROM majors WHERE id = ? AND deleted_at IS NULL"
	if err := get(ctx, repo.exec, &m, q, id); err != nil {
		return catalog.Major{}, trapNoRowsErr(err, catalog.ErrMajorNotFound, "finding major by ID")
	}
	return m, nil
}

func (repo catalogRepository) UpdateMajor(ctx context.Context, m catalog.Major) (catalog.Major, error) {
	n, err := execute(ctx, repo.exec,
		`UPDATE majors SET name = ?, major_type_id = ?, price = ?, duration = ?, description = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		m.Name, m.MajorTypeID, m.Price, m.Duration, m.Description, m.UpdatedAt, m.ID)
	if err != nil {
		return catalog.Major{}, errors.Wrap(err, "updating major")
	}
	if n == 0 {
		return catalog.Major{}, catalog.ErrMajorNotFound
	}
	return m, nil
}

func (repo catalogRepository) SoftDeleteMajor(ctx context.Context, id string, at time.Time) error {
	n, err := execute(ctx, repo.exec, "UPDATE majors SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", at, id)
	if err != nil {
		return errors.Wrap(err, "deleting major")
	}
	if n == 0 {
		return catalog.ErrMajorNotFound
	}
	return nil
}

func (repo catalogRepository) MajorHasEnrollments(ctx context.Context, id string) (bool, error) {
	var count int
	if err := get(ctx, repo.exec, &count, "SELECT COUNT(*) FROM enrollments WHERE major_id = ?", id); err != nil {
		return false, errors.Wrap(err, "counting major enrollments")
	}
	return count > 0, nil
}

// Taxes

func (repo catalogRepository) CreateTax(ctx context.Context, t catalog.Tax) (catalog.Tax, error) {
	_, err := execute(ctx, repo.exec,
		"INSERT INTO taxes ("+taxColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Name, t.Amount, t.Description, t.CreatedAt, t.UpdatedAt, t.DeletedAt)
	if err != nil {
		return catalog.Tax{}, errors.Wrap(err, "inserting tax")
	}
	return t, nil
}

func (repo catalogRepository) QueryTaxes(ctx context.Context, filter catalog.TaxFilter, ordering []core.DBOrdering) ([]catalog.Tax, error) {
	var conds conditions
	conds.add("deleted_at IS NULL")
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	conds.search(filter.Search, "name", "description")

	taxes := make([]catalog.Tax, 0)
	q := "SELECT " + taxColumns + " FROM taxes" + conds.where() + orderBy(ordering, taxOrdering, "name ASC, id ASC")
	if err := selectAll(ctx, repo.exec, &taxes, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying taxes")
	}
	return taxes, nil
}

func (repo catalogRepository) GetTaxByID(ctx context.Context, id string) (catalog.Tax, error) {
	var t catalog.Tax
	q := "SELECT " + taxColumns + " FROM taxes WHERE id = ? AND deleted_at IS NULL"
	if err := get(ctx, repo.exec, &t, q, id); err != nil {
		return catalog.Tax{}, trapNoRowsErr(err, catalog.ErrTaxNotFound, "finding tax by ID")
	}
	return t, nil
}

func (repo catalogRepository) UpdateTax(ctx context.Context, t catalog.Tax) (catalog.Tax, error) {
	n, err := execute(ctx, repo.exec,
		"UPDATE taxes SET name = ?, amount = ?, description = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		t.Name, t.Amount, t.Description, t.UpdatedAt, t.ID)
	if err != nil {
		return catalog.Tax{}, errors.Wrap(err, "updating tax")
	}
	if n == 0 {
		return catalog.Tax{}, catalog.ErrTaxNotFound
	}
	return t, nil
}

func (repo catalogRepository) SoftDeleteTax(ctx context.Context, id string, at time.Time) error {
	n, err := execute(ctx, repo.exec, "UPDATE taxes SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", at, id)
	if err != nil {
		return errors.Wrap(err, "deleting tax")
	}
	if n == 0 {
		return catalog.ErrTaxNotFound
	}
	return nil
}

// Major <-> Tax

func (repo catalogRepository) AddMajorTax(ctx context.Context, majorID, taxID string) error {
	_, err := execute(ctx, repo.exec,
		"INSERT INTO major_taxes (major_id, tax_id) VALUES (?, ?) ON CONFLICT (major_id, tax_id) DO NOTHING",
		majorID, taxID)
	return errors.Wrap(err, "associating tax with major")
}

func (repo catalogRepository) RemoveMajorTax(ctx context.Context, majorID, taxID string) error {
	_, err := execute(ctx, repo.exec, "DELETE FROM major_taxes WHERE major_id = ? AND tax_id = ?", majorID, taxID)
	return errors.Wrap(err, "dissociating tax from major")
}

func (repo catalogRepository) QueryMajorTaxes(ctx context.Context, majorID string) ([]catalog.Tax, error) {
	taxes := make([]catalog.Tax, 0)
	q := `SELECT t.id, t.name, t.amount, t.description, t.created_at, t.updated_at, t.deleted_at
		FROM taxes t JOIN major_taxes mt ON mt.tax_id = t.id
		WHERE mt.major_id = ? AND t.deleted_at IS NULL
		ORDER BY t.name ASC, t.id ASC`
	if err := selectAll(ctx, repo.exec, &taxes, q, majorID); err != nil {
		return nil, errors.Wrap(err, "querying major taxes")
	}
	return taxes, nil
}
