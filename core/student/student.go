package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("student")
	ErrHasEnrollments = errors.New("student is still enrolled in majors")
	ErrEmailExists    = errors.New("a student with this email already exists")
)

type Student struct {
	ID        string    `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (s Student) FullName() string { return s.FirstName + " " + s.LastName }

type NewStudent struct {
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	return validate.Struct(ns)
}

type UpdateStudent struct {
	FirstName *string `json:"first_name" validate:"omitempty,notblank,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,notblank,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{us.FirstName, us.LastName, us.Phone} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	if us.Email != nil {
		*us.Email = core.CleanString(*us.Email, true /* lower */)
	}
	return validate.Struct(us)
}

type QueryFilter struct {
	IDs       []string `query:"id"`
	Search    string   `query:"search"` // first name, last name or email
	CreatedBy string   `query:"created_by"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		CountStudents(ctx context.Context, filter QueryFilter) (int, error)
		GetStudentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		GetStudentByEmail(ctx context.Context, email string) (Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		HasEnrollments(ctx context.Context, id string) (bool, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent, createdBy string) (Student, error) {
	if err := svc.checkEmail(ctx, ns.Email, ""); err != nil {
		return Student{}, err
	}
	now := core.Now()
	return svc.repo.CreateStudent(ctx, Student{
		ID:        core.NewID(),
		FirstName: ns.FirstName,
		LastName:  ns.LastName,
		Email:     ns.Email,
		Phone:     ns.Phone,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountStudents(ctx, QueryFilter{})
}

func (svc *Service) GetByID(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id, exec...)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if us.Email != nil && *us.Email != s.Email {
		if err = svc.checkEmail(ctx, *us.Email, s.ID); err != nil {
			return Student{}, err
		}
		s.Email = *us.Email
	}
	if us.FirstName != nil && *us.FirstName != "" {
		s.FirstName = *us.FirstName
	}
	if us.LastName != nil && *us.LastName != "" {
		s.LastName = *us.LastName
	}
	if us.Phone != nil {
		s.Phone = *us.Phone
	}
	s.UpdatedAt = core.Now()
	return svc.repo.UpdateStudent(ctx, s)
}

// Delete removes a student who is not enrolled in any major.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetStudentByID(ctx, id); err != nil {
		return err
	}
	enrolled, err := svc.repo.HasEnrollments(ctx, id)
	if err != nil {
		return errors.Wrap(err, "checking student enrollments")
	}
	if enrolled {
		return core.NewValidationError(ErrHasEnrollments, core.FieldError{Field: "id", Error: ErrHasEnrollments.Error()})
	}
	return svc.repo.DeleteStudent(ctx, id)
}

func (svc *Service) checkEmail(ctx context.Context, email, excludedID string) error {
	if email == "" {
		return nil
	}
	s, err := svc.repo.GetStudentByEmail(ctx, email)
	switch {
	case err == nil && s.ID != excludedID:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case err == nil, core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "finding student by email")
	}
}
