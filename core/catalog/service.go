package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
)

var (
	// errors
	ErrMajorNotFound = core.NewNotFoundError("major")
	ErrTypeNotFound  = core.NewNotFoundError("program type")
	ErrTaxNotFound   = core.NewNotFoundError("tax")

	ErrTypeNameExists = errors.New("a program type with this name already exists")
	ErrTypeInUse      = errors.New("program type still has majors")
	ErrPriceLocked    = errors.New("price cannot change once students are enrolled")
)

type (
	Repository interface {
		CreateMajorType(ctx context.Context, mt MajorType) (MajorType, error)
		QueryMajorTypes(ctx context.Context) ([]MajorType, error)
		GetMajorTypeByID(ctx context.Context, id string) (MajorType, error)
		GetMajorTypeByName(ctx context.Context, name string) (MajorType, error)
		UpdateMajorType(ctx context.Context, mt MajorType) (MajorType, error)
		DeleteMajorType(ctx context.Context, id string) error

		CreateMajor(ctx context.Context, m Major) (Major, error)
		// QueryMajors returns non-deleted majors unless MajorFilter.WithDeleted is set.
		QueryMajors(ctx context.Context, filter MajorFilter, ordering []core.DBOrdering) ([]Major, error)
		CountMajors(ctx context.Context, filter MajorFilter) (int, error)
		GetMajorByID(ctx context.Context, id string) (Major, error)
		UpdateMajor(ctx context.Context, m Major) (Major, error)
		SoftDeleteMajor(ctx context.Context, id string, at time.Time) error
		MajorHasEnrollments(ctx context.Context, id string) (bool, error)

		CreateTax(ctx context.Context, t Tax) (Tax, error)
		QueryTaxes(ctx context.Context, filter TaxFilter, ordering []core.DBOrdering) ([]Tax, error)
		GetTaxByID(ctx context.Context, id string) (Tax, error)
		UpdateTax(ctx context.Context, t Tax) (Tax, error)
		SoftDeleteTax(ctx context.Context, id string, at time.Time) error

		// AddMajorTax is a no-op when the association already exists.
		AddMajorTax(ctx context.Context, majorID, taxID string) error
		RemoveMajorTax(ctx context.Context, majorID, taxID string) error
		// QueryMajorTaxes returns the non-deleted taxes associated with a major, ordered by name.
		QueryMajorTaxes(ctx context.Context, majorID string) ([]Tax, error)
	}

	// Service is the catalog store: majors, program types, taxes and their associations.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Program types

func (svc *Service) CreateType(ctx context.Context, nt NewMajorType) (MajorType, error) {
	if err := svc.checkTypeName(ctx, nt.Name); err != nil {
		return MajorType{}, err
	}
	now := core.Now()
	return svc.repo.CreateMajorType(ctx, MajorType{
		ID:          core.NewID(),
		Name:        nt.Name,
		Description: nullString(nt.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryTypes(ctx context.Context) ([]MajorType, error) {
	return svc.repo.QueryMajorTypes(ctx)
}

func (svc *Service) GetType(ctx context.Context, id string) (MajorType, error) {
	return svc.repo.GetMajorTypeByID(ctx, id)
}

func (svc *Service) UpdateType(ctx context.Context, id string, ut UpdateMajorType) (MajorType, error) {
	mt, err := svc.repo.GetMajorTypeByID(ctx, id)
	if err != nil {
		return MajorType{}, err
	}
	if ut.Name != nil && !strings.EqualFold(*ut.Name, mt.Name) {
		if err = svc.checkTypeName(ctx, *ut.Name); err != nil {
			return MajorType{}, err
		}
	}
	if ut.Name != nil {
		mt.Name = *ut.Name
	}
	if ut.Description != nil {
		mt.Description = nullString(*ut.Description)
	}
	mt.UpdatedAt = core.Now()
	return svc.repo.UpdateMajorType(ctx, mt)
}

// DeleteType deletes a program type no major (deleted or not) refers to.
func (svc *Service) DeleteType(ctx context.Context, id string) error {
	if _, err := svc.repo.GetMajorTypeByID(ctx, id); err != nil {
		return err
	}
	count, err := svc.repo.CountMajors(ctx, MajorFilter{MajorTypeID: id, WithDeleted: true})
	if err != nil {
		return errors.Wrap(err, "counting majors of type")
	}
	if count > 0 {
		return core.NewValidationError(ErrTypeInUse, core.FieldError{Field: "id", Error: ErrTypeInUse.Error()})
	}
	return svc.repo.DeleteMajorType(ctx, id)
}

func (svc *Service) QueryTypeMajors(ctx context.Context, typeID string) ([]Major, error) {
	if _, err := svc.repo.GetMajorTypeByID(ctx, typeID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMajors(ctx, MajorFilter{MajorTypeID: typeID}, nil)
}

func (svc *Service) checkTypeName(ctx context.Context, name string) error {
	_, err := svc.repo.GetMajorTypeByName(ctx, name)
	switch {
	case err == nil:
		return core.NewValidationError(ErrTypeNameExists, core.FieldError{Field: "name", Error: ErrTypeNameExists.Error()})
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "finding program type by name")
	}
}

// Majors

func (svc *Service) CreateMajor(ctx context.Context, nm NewMajor) (Major, error) {
	if err := svc.checkTypeExists(ctx, nm.MajorTypeID); err != nil {
		return Major{}, err
	}
	now := core.Now()
	return svc.repo.CreateMajor(ctx, Major{
		ID:          core.NewID(),
		Name:        nm.Name,
		MajorTypeID: nm.MajorTypeID,
		Price:       nm.Price,
		Duration:    nm.Duration,
		Description: nullString(nm.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryMajors(ctx context.Context, filter MajorFilter, ordering []core.DBOrdering) ([]Major, error) {
	return svc.repo.QueryMajors(ctx, filter, ordering)
}

func (svc *Service) CountMajors(ctx context.Context) (int, error) {
	return svc.repo.CountMajors(ctx, MajorFilter{})
}

func (svc *Service) GetMajor(ctx context.Context, id string) (Major, error) {
	return svc.repo.GetMajorByID(ctx, id)
}

// UpdateMajor applies the non-nil fields of um. The price of a major students are enrolled in is locked.
func (svc *Service) UpdateMajor(ctx context.Context, id string, um UpdateMajor) (Major, error) {
	m, err := svc.repo.GetMajorByID(ctx, id)
	if err != nil {
		return Major{}, err
	}

	if um.MajorTypeID != nil && *um.MajorTypeID != m.MajorTypeID {
		if err = svc.checkTypeExists(ctx, *um.MajorTypeID); err != nil {
			return Major{}, err
		}
		m.MajorTypeID = *um.MajorTypeID
	}
	if um.Price != nil && *um.Price != m.Price {
		enrolled, err := svc.repo.MajorHasEnrollments(ctx, id)
		if err != nil {
			return Major{}, errors.Wrap(err, "checking major enrollments")
		}
		if enrolled {
			return Major{}, core.NewValidationError(ErrPriceLocked, core.FieldError{Field: "price", Error: ErrPriceLocked.Error()})
		}
		m.Price = *um.Price
	}
	if um.Name != nil {
		m.Name = *um.Name
	}
	if um.Duration != nil {
		m.Duration = *um.Duration
	}
	if um.Description != nil {
		m.Description = nullString(*um.Description)
	}
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateMajor(ctx, m)
}

// DeleteMajor soft-deletes a major: it leaves every listing, while the enrollments and payments
// referring to it keep their history.
func (svc *Service) DeleteMajor(ctx context.Context, id string) error {
	if _, err := svc.repo.GetMajorByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.SoftDeleteMajor(ctx, id, core.Now())
}

// GroupedMajors returns every program type, ordered by name, with its majors.
func (svc *Service) GroupedMajors(ctx context.Context) ([]TypeMajors, error) {
	types, err := svc.repo.QueryMajorTypes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying program types")
	}
	majors, err := svc.repo.QueryMajors(ctx, MajorFilter{}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying majors")
	}

	byType := make(map[string][]Major, len(types))
	for _, m := range majors {
		byType[m.MajorTypeID] = append(byType[m.MajorTypeID], m)
	}

	sort.SliceStable(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	grouped := make([]TypeMajors, 0, len(types))
	for _, mt := range types {
		ms := byType[mt.ID]
		if ms == nil {
			ms = []Major{}
		}
		grouped = append(grouped, TypeMajors{MajorType: mt, Majors: ms})
	}
	return grouped, nil
}

func (svc *Service) checkTypeExists(ctx context.Context, typeID string) error {
	if _, err := svc.repo.GetMajorTypeByID(ctx, typeID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "major_type_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding program type by ID")
	}
	return nil
}

// Taxes

func (svc *Service) CreateTax(ctx context.Context, nt NewTax) (Tax, error) {
	now := core.Now()
	return svc.repo.CreateTax(ctx, Tax{
		ID:          core.NewID(),
		Name:        nt.Name,
		Amount:      nt.Amount,
		Description: nullString(nt.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryTaxes(ctx context.Context, filter TaxFilter, ordering []core.DBOrdering) ([]Tax, error) {
	return svc.repo.QueryTaxes(ctx, filter, ordering)
}

func (svc *Service) GetTax(ctx context.Context, id string) (Tax, error) {
	return svc.repo.GetTaxByID(ctx, id)
}

func (svc *Service) UpdateTax(ctx context.Context, id string, ut UpdateTax) (Tax, error) {
	t, err := svc.repo.GetTaxByID(ctx, id)
	if err != nil {
		return Tax{}, err
	}
	if ut.Name != nil {
		t.Name = *ut.Name
	}
	if ut.Amount != nil {
		t.Amount = *ut.Amount
	}
	if ut.Description != nil {
		t.Description = nullString(*ut.Description)
	}
	t.UpdatedAt = core.Now()
	return svc.repo.UpdateTax(ctx, t)
}

// DeleteTax soft-deletes a tax: it stops applying to every major it was associated with.
func (svc *Service) DeleteTax(ctx context.Context, id string) error {
	if _, err := svc.repo.GetTaxByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.SoftDeleteTax(ctx, id, core.Now())
}

// Major <-> Tax

// AssociateTax applies a tax to a major. Associating twice is a no-op.
func (svc *Service) AssociateTax(ctx context.Context, majorID, taxID string) error {
	if _, err := svc.repo.GetMajorByID(ctx, majorID); err != nil {
		return err
	}
	if _, err := svc.repo.GetTaxByID(ctx, taxID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "tax_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding tax by ID")
	}
	return svc.repo.AddMajorTax(ctx, majorID, taxID)
}

func (svc *Service) DissociateTax(ctx context.Context, majorID, taxID string) error {
	if _, err := svc.repo.GetMajorByID(ctx, majorID); err != nil {
		return err
	}
	return svc.repo.RemoveMajorTax(ctx, majorID, taxID)
}

func (svc *Service) QueryMajorTaxes(ctx context.Context, majorID string) ([]Tax, error) {
	if _, err := svc.repo.GetMajorByID(ctx, majorID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMajorTaxes(ctx, majorID)
}
