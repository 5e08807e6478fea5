package ledger

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/money"
)

// Enrollment registers a student into a major. A student holds at most one enrollment per major.
type Enrollment struct {
	StudentID      string    `json:"student_id" db:"student_id"`
	MajorID        string    `json:"major_id" db:"major_id"`
	EnrolledBy     string    `json:"enrolled_by" db:"enrolled_by"`
	EnrollmentDate time.Time `json:"enrollment_date" db:"enrollment_date"`
}

// Payment is one row of an enrollment's payment history.
//
// AmountPaid is the running total of the enrollment once the row is written and Installment is what
// the row added to it. TotalDue is the total due of the major when the row was written, so that
// RemainingAmount == TotalDue - AmountPaid holds on every row. Seq orders the rows of an enrollment;
// the row with the highest Seq carries the enrollment's balance.
type Payment struct {
	ID              string      `json:"id" db:"id"`
	StudentID       string      `json:"student_id" db:"student_id"`
	MajorID         string      `json:"major_id" db:"major_id"`
	Seq             int         `json:"seq" db:"seq"`
	AmountPaid      money.Money `json:"amount_paid" db:"amount_paid"`
	Installment     money.Money `json:"installment" db:"installment"`
	RemainingAmount money.Money `json:"remaining_amount" db:"remaining_amount"`
	TotalDue        money.Money `json:"total_due" db:"total_due"`
	HandledBy       string      `json:"handled_by" db:"handled_by"`
	PaidAt          time.Time   `json:"paid_at" db:"paid_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// StudentMajor is an enrollment with its major and balance.
type StudentMajor struct {
	Enrollment
	Major        catalog.Major `json:"major"`
	MajorDeleted bool          `json:"major_deleted"`
	TotalDue     money.Money   `json:"total_due"`
	AmountPaid   money.Money   `json:"amount_paid"`
	Outstanding  money.Money   `json:"outstanding"` // negative when overpaid
}

type NewEnrollment struct {
	StudentID  string      `json:"-"`
	MajorID    string      `json:"major_id" validate:"required"`
	PaidAmount money.Money `json:"paid_amount" validate:"gte=0"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.MajorID = core.CleanString(ne.MajorID)
	return validate.Struct(ne)
}

type NewInstallment struct {
	StudentID string      `json:"student_id" validate:"required"`
	MajorID   string      `json:"major_id" validate:"required"`
	Amount    money.Money `json:"amount" validate:"gt=0"`
}

func (ni *NewInstallment) Validate(validate *validator.Validate) error {
	ni.StudentID = core.CleanString(ni.StudentID)
	ni.MajorID = core.CleanString(ni.MajorID)
	return validate.Struct(ni)
}

// AmendPayment proposes a new running total for a payment row.
type AmendPayment struct {
	AmountPaid money.Money `json:"amount_paid"`
}

type EnrollmentFilter struct {
	StudentID  string `query:"student_id"`
	MajorID    string `query:"major_id"`
	EnrolledBy string `query:"enrolled_by"`
}

type PaymentFilter struct {
	IDs       []string `query:"id"`
	StudentID string   `query:"student_id"`
	MajorID   string   `query:"major_id"`
	HandledBy string   `query:"handled_by"`
	// LatestOnly keeps the latest row of each enrollment.
	LatestOnly bool `query:"latest"`
}
