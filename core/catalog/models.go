package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/money"
)

// MajorType groups majors into a program category (e.g. "Engineering").
type MajorType struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description null.String `json:"description" db:"description"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

type Major struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	MajorTypeID string      `json:"major_type_id" db:"major_type_id"`
	Price       money.Money `json:"price" db:"price"`
	Duration    int         `json:"duration" db:"duration"` // months
	Description null.String `json:"description" db:"description"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
	DeletedAt   null.Time   `json:"-" db:"deleted_at"`
}

type Tax struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Amount      money.Money `json:"amount" db:"amount"`
	Description null.String `json:"description" db:"description"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
	DeletedAt   null.Time   `json:"-" db:"deleted_at"`
}

// MajorTax associates a Tax with a Major. The pair is unique.
type MajorTax struct {
	MajorID string `json:"major_id" db:"major_id"`
	TaxID   string `json:"tax_id" db:"tax_id"`
}

// TypeMajors is a MajorType with its majors.
type TypeMajors struct {
	MajorType
	Majors []Major `json:"majors"`
}

type NewMajorType struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (nt *NewMajorType) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

type UpdateMajorType struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

func (ut *UpdateMajorType) Validate(validate *validator.Validate) error {
	ut.Name = cleanPtr(ut.Name, true /* dropEmpty */)
	ut.Description = cleanPtr(ut.Description)
	return validate.Struct(ut)
}

type NewMajor struct {
	Name        string      `json:"name" validate:"required,notblank,max=200"`
	MajorTypeID string      `json:"major_type_id" validate:"required"`
	Price       money.Money `json:"price" validate:"gte=0"`
	Duration    int         `json:"duration" validate:"gte=0"`
	Description string      `json:"description" validate:"max=1000"`
}

func (nm *NewMajor) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.MajorTypeID = core.CleanString(nm.MajorTypeID)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

type UpdateMajor struct {
	Name        *string      `json:"name" validate:"omitempty,notblank,max=200"`
	MajorTypeID *string      `json:"major_type_id" validate:"omitempty,notblank"`
	Price       *money.Money `json:"price" validate:"omitempty,gte=0"`
	Duration    *int         `json:"duration" validate:"omitempty,gte=0"`
	Description *string      `json:"description" validate:"omitempty,max=1000"`
}

func (um *UpdateMajor) Validate(validate *validator.Validate) error {
	um.Name = cleanPtr(um.Name, true /* dropEmpty */)
	um.MajorTypeID = cleanPtr(um.MajorTypeID, true /* dropEmpty */)
	um.Description = cleanPtr(um.Description)
	return validate.Struct(um)
}

type NewTax struct {
	Name        string      `json:"name" validate:"required,notblank,max=100"`
	Amount      money.Money `json:"amount" validate:"gte=0"`
	Description string      `json:"description" validate:"max=1000"`
}

func (nt *NewTax) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

type UpdateTax struct {
	Name        *string      `json:"name" validate:"omitempty,notblank,max=100"`
	Amount      *money.Money `json:"amount" validate:"omitempty,gte=0"`
	Description *string      `json:"description" validate:"omitempty,max=1000"`
}

func (ut *UpdateTax) Validate(validate *validator.Validate) error {
	ut.Name = cleanPtr(ut.Name, true /* dropEmpty */)
	ut.Description = cleanPtr(ut.Description)
	return validate.Struct(ut)
}

type AssociateTax struct {
	TaxID string `json:"tax_id" validate:"required"`
}

func (at *AssociateTax) Validate(validate *validator.Validate) error {
	at.TaxID = core.CleanString(at.TaxID)
	return validate.Struct(at)
}

type MajorFilter struct {
	IDs         []string `query:"id"`
	Search      string   `query:"search"`
	MajorTypeID string   `query:"major_type_id"`
	WithDeleted bool     `query:"-"`
}

func (mf *MajorFilter) Clean() {
	mf.Search = core.CleanString(mf.Search)
	mf.MajorTypeID = core.CleanString(mf.MajorTypeID)
}

type TaxFilter struct {
	IDs    []string `query:"id"`
	Search string   `query:"search"`
}

func (tf *TaxFilter) Clean() {
	tf.Search = core.CleanString(tf.Search)
}

// cleanPtr cleans *s. With dropEmpty, a blank value means "unchanged" and becomes nil.
func cleanPtr(s *string, dropEmpty ...bool) *string {
	if s == nil {
		return nil
	}
	cleaned := core.CleanString(*s)
	if cleaned == "" && len(dropEmpty) > 0 && dropEmpty[0] {
		return nil
	}
	return &cleaned
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
