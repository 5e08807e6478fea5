// Package ledger records which students are enrolled in which majors and what they paid.
package ledger

import (
	"context"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/money"
	"github.com/RouahImad/Project-epg-sub000/core/reconcile"
	"github.com/RouahImad/Project-epg-sub000/core/student"
)

var (
	// errors
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrPaymentNotFound    = core.NewNotFoundError("payment")

	ErrAlreadyEnrolled    = errors.New("student is already enrolled in this major")
	ErrInvalidInstallment = errors.New("installment must be greater than zero")
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		DeleteEnrollment(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) error

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPaymentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Payment, error)
		// LatestPayment returns ErrPaymentNotFound when the enrollment has no payment.
		LatestPayment(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter PaymentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Payment, error)
		UpdatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		// ShiftPayments adds delta to the running total of every row of the enrollment after afterSeq
		// and subtracts it from their remaining amount.
		ShiftPayments(ctx context.Context, studentID, majorID string, afterSeq int, delta money.Money, exec ...core.DBExecutor) error
		DeletePayment(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteEnrollmentPayments(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) error
	}

	// CatalogReader is the part of the catalog the ledger reads.
	CatalogReader interface {
		reconcile.CatalogReader
		QueryMajors(ctx context.Context, filter catalog.MajorFilter, ordering []core.DBOrdering) ([]catalog.Major, error)
	}

	StudentReader interface {
		GetByID(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		catalog  CatalogReader
		students StudentReader
		engine   *reconcile.Engine
	}
)

func NewService(db core.DB, repo Repository, cat CatalogReader, students StudentReader) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		catalog:  cat,
		students: students,
		engine:   reconcile.NewEngine(cat, paidReader{repo: repo}),
	}
}

// Engine returns the reconciliation engine reading this ledger.
func (svc *Service) Engine() *reconcile.Engine {
	return svc.engine
}

// Enrollments

// Enroll registers a student into a major and records the amount paid at enrollment as the first
// payment row. Paying more than the total due is accepted.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment, handledBy string) (Enrollment, Payment, error) {
	if _, err := svc.students.GetByID(ctx, ne.StudentID); err != nil {
		return Enrollment{}, Payment{}, err
	}
	totalDue, err := svc.totalDue(ctx, ne.MajorID)
	if err != nil {
		return Enrollment{}, Payment{}, err
	}
	remaining, err := reconcile.ValidateEnrollmentPayment(totalDue, ne.PaidAmount)
	if err != nil {
		return Enrollment{}, Payment{}, fieldError("paid_amount", err)
	}

	now := core.Now()
	enr := Enrollment{
		StudentID:      ne.StudentID,
		MajorID:        ne.MajorID,
		EnrolledBy:     handledBy,
		EnrollmentDate: now,
	}
	pmt := Payment{
		ID:              core.NewID(),
		StudentID:       ne.StudentID,
		MajorID:         ne.MajorID,
		Seq:             1,
		AmountPaid:      ne.PaidAmount,
		Installment:     ne.PaidAmount,
		RemainingAmount: remaining,
		TotalDue:        totalDue,
		HandledBy:       handledBy,
		PaidAt:          now,
		UpdatedAt:       now,
	}

	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		_, err := svc.repo.GetEnrollment(ctx, ne.StudentID, ne.MajorID, tx)
		switch {
		case err == nil:
			return fieldError("major_id", ErrAlreadyEnrolled)
		case !core.IsNotFound(err):
			return errors.Wrap(err, "finding enrollment")
		}
		if enr, err = svc.repo.CreateEnrollment(ctx, enr, tx); err != nil {
			return err
		}
		pmt, err = svc.repo.CreatePayment(ctx, pmt, tx)
		return err
	})
	if err != nil {
		return Enrollment{}, Payment{}, err
	}
	return enr, pmt, nil
}

// Unenroll deletes an enrollment with its payment history.
func (svc *Service) Unenroll(ctx context.Context, studentID, majorID string) error {
	return core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetEnrollment(ctx, studentID, majorID, tx); err != nil {
			return err
		}
		if err := svc.repo.DeleteEnrollmentPayments(ctx, studentID, majorID, tx); err != nil {
			return err
		}
		return svc.repo.DeleteEnrollment(ctx, studentID, majorID, tx)
	})
}

func (svc *Service) QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

// StudentMajors lists the majors a student is enrolled in with their balance. The total due of a
// deleted major is the one recorded on its latest payment row.
func (svc *Service) StudentMajors(ctx context.Context, studentID string) ([]StudentMajor, error) {
	if _, err := svc.students.GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(enrs) == 0 {
		return []StudentMajor{}, nil
	}

	ids := make([]string, 0, len(enrs))
	for _, e := range enrs {
		ids = append(ids, e.MajorID)
	}
	majors, err := svc.catalog.QueryMajors(ctx, catalog.MajorFilter{IDs: ids, WithDeleted: true}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying majors")
	}
	byID := make(map[string]catalog.Major, len(majors))
	for _, m := range majors {
		byID[m.ID] = m
	}

	sms := make([]StudentMajor, 0, len(enrs))
	for _, e := range enrs {
		latest, err := svc.repo.LatestPayment(ctx, e.StudentID, e.MajorID)
		if err != nil && !core.IsNotFound(err) {
			return nil, errors.Wrap(err, "finding latest payment")
		}

		m := byID[e.MajorID]
		sm := StudentMajor{
			Enrollment:   e,
			Major:        m,
			MajorDeleted: m.DeletedAt.Valid,
			AmountPaid:   latest.AmountPaid,
		}
		if sm.MajorDeleted {
			sm.TotalDue = latest.TotalDue
		} else if sm.TotalDue, err = svc.engine.ComputeTotalDue(ctx, e.MajorID); err != nil {
			return nil, err
		}
		sm.Outstanding = sm.TotalDue - sm.AmountPaid
		sms = append(sms, sm)
	}
	return sms, nil
}

// Outstanding is the signed balance of an enrollment.
func (svc *Service) Outstanding(ctx context.Context, studentID, majorID string) (money.Money, error) {
	if _, err := svc.repo.GetEnrollment(ctx, studentID, majorID); err != nil {
		return 0, err
	}
	return svc.engine.ComputeOutstanding(ctx, studentID, majorID)
}

// Payments

// RecordInstallment appends a payment row to an enrollment. Its running total is the previous one
// plus the installment, its remaining amount is taken against the current total due of the major.
func (svc *Service) RecordInstallment(ctx context.Context, ni NewInstallment, handledBy string) (Payment, error) {
	if !ni.Amount.IsPositive() {
		return Payment{}, fieldError("amount", ErrInvalidInstallment)
	}
	if _, err := svc.repo.GetEnrollment(ctx, ni.StudentID, ni.MajorID); err != nil {
		if core.IsNotFound(err) {
			return Payment{}, fieldError("major_id", err)
		}
		return Payment{}, errors.Wrap(err, "finding enrollment")
	}
	totalDue, err := svc.totalDue(ctx, ni.MajorID)
	if err != nil {
		return Payment{}, err
	}

	var pmt Payment
	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		latest, err := svc.repo.LatestPayment(ctx, ni.StudentID, ni.MajorID, tx)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding latest payment")
		}
		now := core.Now()
		paid := latest.AmountPaid + ni.Amount
		pmt, err = svc.repo.CreatePayment(ctx, Payment{
			ID:              core.NewID(),
			StudentID:       ni.StudentID,
			MajorID:         ni.MajorID,
			Seq:             latest.Seq + 1,
			AmountPaid:      paid,
			Installment:     ni.Amount,
			RemainingAmount: totalDue - paid,
			TotalDue:        totalDue,
			HandledBy:       handledBy,
			PaidAt:          now,
			UpdatedAt:       now,
		}, tx)
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	return pmt, nil
}

// AmendPayment raises the running total of a payment row. The rows recorded after it are shifted by
// the same amount, so the increase is bounded by what is left on the enrollment, not by the row's own
// remaining amount. Concurrent amendments of the same row are last-write-wins.
func (svc *Service) AmendPayment(ctx context.Context, id string, ap AmendPayment) (Payment, error) {
	pmt, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	totalDue, err := svc.engine.ComputeTotalDue(ctx, pmt.MajorID)
	known := err == nil
	if err != nil && !core.IsNotFound(err) {
		return Payment{}, err
	}

	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if pmt, err = svc.repo.GetPaymentByID(ctx, id, tx); err != nil {
			return err
		}
		latest, err := svc.repo.LatestPayment(ctx, pmt.StudentID, pmt.MajorID, tx)
		if err != nil {
			return errors.Wrap(err, "finding latest payment")
		}
		state := amendmentState(pmt, latest, totalDue, known)
		if _, err = reconcile.ValidateAmendment(state, ap.AmountPaid); err != nil {
			return fieldError("amount_paid", err)
		}

		delta := ap.AmountPaid - pmt.AmountPaid
		pmt.AmountPaid = ap.AmountPaid
		pmt.RemainingAmount -= delta
		pmt.Installment += delta
		pmt.UpdatedAt = core.Now()
		if pmt, err = svc.repo.UpdatePayment(ctx, pmt, tx); err != nil {
			return err
		}
		return svc.repo.ShiftPayments(ctx, pmt.StudentID, pmt.MajorID, pmt.Seq, delta, tx)
	})
	if err != nil {
		return Payment{}, err
	}
	return pmt, nil
}

// amendmentState is what an amendment of pmt is validated against: its running total and the balance
// left on the enrollment. The balance is the latest row's remaining amount, lowered to the major's
// current total due when taxes or the price dropped since that row was written.
func amendmentState(pmt, latest Payment, totalDue money.Money, known bool) reconcile.PaymentState {
	balance := latest.RemainingAmount
	if known && totalDue-latest.AmountPaid < balance {
		balance = totalDue - latest.AmountPaid
	}
	return reconcile.PaymentState{AmountPaid: pmt.AmountPaid, RemainingAmount: balance}
}

// DeletePayment removes a payment row and takes its installment off the rows recorded after it.
func (svc *Service) DeletePayment(ctx context.Context, id string) (Payment, error) {
	var pmt Payment
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if pmt, err = svc.repo.GetPaymentByID(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.repo.DeletePayment(ctx, id, tx); err != nil {
			return err
		}
		return svc.repo.ShiftPayments(ctx, pmt.StudentID, pmt.MajorID, pmt.Seq, -pmt.Installment, tx)
	})
	if err != nil {
		return Payment{}, err
	}
	return pmt, nil
}

func (svc *Service) QueryPayments(ctx context.Context, filter PaymentFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter, ordering)
}

func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPaymentByID(ctx, id)
}

// totalDue computes the current total due of a major referenced by a request body.
func (svc *Service) totalDue(ctx context.Context, majorID string) (money.Money, error) {
	totalDue, err := svc.engine.ComputeTotalDue(ctx, majorID)
	if err != nil {
		if core.IsNotFound(err) {
			return 0, fieldError("major_id", err)
		}
		return 0, err
	}
	return totalDue, nil
}

func fieldError(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// paidReader reads running totals for the reconciliation engine.
type paidReader struct {
	repo Repository
}

var _ reconcile.PaidReader = paidReader{} // interface compliance check

func (pr paidReader) LatestAmountPaid(ctx context.Context, studentID, majorID string) (money.Money, bool, error) {
	p, err := pr.repo.LatestPayment(ctx, studentID, majorID)
	if err != nil {
		if core.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return p.AmountPaid, true, nil
}
