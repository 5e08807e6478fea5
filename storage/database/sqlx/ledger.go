package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/money"
)

const (
	enrollmentColumns = "student_id, major_id, enrolled_by, enrollment_date"
	paymentColumns    = "id, student_id, major_id, seq, amount_paid, installment, remaining_amount, total_due, handled_by, paid_at, updated_at"
)

var paymentOrdering = map[string]string{
	"paid_at":          "paid_at",
	"amount_paid":      "amount_paid",
	"installment":      "installment",
	"remaining_amount": "remaining_amount",
	"seq":              "seq",
}

type ledgerRepository struct {
	repository
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(exec core.DBExecutor) *ledgerRepository {
	return &ledgerRepository{repository{exec: exec}}
}

// Enrollments

func (repo ledgerRepository) CreateEnrollment(ctx context.Context, e ledger.Enrollment, exec ...core.DBExecutor) (ledger.Enrollment, error) {
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO enrollments ("+enrollmentColumns+") VALUES (?, ?, ?, ?)",
		e.StudentID, e.MajorID, e.EnrolledBy, e.EnrollmentDate)
	if err != nil {
		return ledger.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo ledgerRepository) GetEnrollment(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) (ledger.Enrollment, error) {
	var e ledger.Enrollment
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_id = ? AND major_id = ?"
	if err := get(ctx, repo.getExec(exec), &e, q, studentID, majorID); err != nil {
		return ledger.Enrollment{}, trapNoRowsErr(err, ledger.ErrEnrollmentNotFound, "finding enrollment")
	}
	return e, nil
}

func (repo ledgerRepository) QueryEnrollments(ctx context.Context, filter ledger.EnrollmentFilter, exec ...core.DBExecutor) ([]ledger.Enrollment, error) {
	var conds conditions
	if filter.StudentID != "" {
		conds.add("student_id = ?", filter.StudentID)
	}
	if filter.MajorID != "" {
		conds.add("major_id = ?", filter.MajorID)
	}
	if filter.EnrolledBy != "" {
		conds.add("enrolled_by = ?", filter.EnrolledBy)
	}

	enrs := make([]ledger.Enrollment, 0)
	q := "SELECT " + enrollmentColumns + " FROM enrollments" + conds.where() + " ORDER BY enrollment_date ASC, student_id ASC, major_id ASC"
	if err := selectAll(ctx, repo.getExec(exec), &enrs, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrs, nil
}

func (repo ledgerRepository) DeleteEnrollment(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) error {
	n, err := execute(ctx, repo.getExec(exec), "DELETE FROM enrollments WHERE student_id = ? AND major_id = ?", studentID, majorID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n == 0 {
		return ledger.ErrEnrollmentNotFound
	}
	return nil
}

// Payments

func (repo ledgerRepository) CreatePayment(ctx context.Context, p ledger.Payment, exec ...core.DBExecutor) (ledger.Payment, error) {
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO payments ("+paymentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.StudentID, p.MajorID, p.Seq, p.AmountPaid, p.Installment, p.RemainingAmount, p.TotalDue,
		p.HandledBy, p.PaidAt, p.UpdatedAt)
	if err != nil {
		return ledger.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo ledgerRepository) GetPaymentByID(ctx context.Context, id string, exec ...core.DBExecutor) (ledger.Payment, error) {
	var p ledger.Payment
	if err := get(ctx, repo.getExec(exec), &p, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id); err != nil {
		return ledger.Payment{}, trapNoRowsErr(err, ledger.ErrPaymentNotFound, "finding payment by ID")
	}
	return p, nil
}

func (repo ledgerRepository) LatestPayment(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) (ledger.Payment, error) {
	var p ledger.Payment
	q := "SELECT " + paymentColumns + " FROM payments WHERE student_id = ? AND major_id = ? ORDER BY seq DESC LIMIT 1"
	if err := get(ctx, repo.getExec(exec), &p, q, studentID, majorID); err != nil {
		return ledger.Payment{}, trapNoRowsErr(err, ledger.ErrPaymentNotFound, "finding latest payment")
	}
	return p, nil
}

func (repo ledgerRepository) QueryPayments(ctx context.Context, filter ledger.PaymentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]ledger.Payment, error) {
	var conds conditions
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	if filter.StudentID != "" {
		conds.add("student_id = ?", filter.StudentID)
	}
	if filter.MajorID != "" {
		conds.add("major_id = ?", filter.MajorID)
	}
	if filter.HandledBy != "" {
		conds.add("handled_by = ?", filter.HandledBy)
	}
	if filter.LatestOnly {
		conds.add(`seq = (SELECT MAX(p2.seq) FROM payments p2
			WHERE p2.student_id = payments.student_id AND p2.major_id = payments.major_id)`)
	}

	pmts := make([]ledger.Payment, 0)
	q := "SELECT " + paymentColumns + " FROM payments" + conds.where() + orderBy(ordering, paymentOrdering, "paid_at DESC, seq DESC, id ASC")
	if err := selectAll(ctx, repo.getExec(exec), &pmts, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	return pmts, nil
}

func (repo ledgerRepository) UpdatePayment(ctx context.Context, p ledger.Payment, exec ...core.DBExecutor) (ledger.Payment, error) {
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE payments SET amount_paid = ?, installment = ?, remaining_amount = ?, updated_at = ? WHERE id = ?",
		p.AmountPaid, p.Installment, p.RemainingAmount, p.UpdatedAt, p.ID)
	if err != nil {
		return ledger.Payment{}, errors.Wrap(err, "updating payment")
	}
	if n == 0 {
		return ledger.Payment{}, ledger.ErrPaymentNotFound
	}
	return p, nil
}

func (repo ledgerRepository) ShiftPayments(ctx context.Context, studentID, majorID string, afterSeq int, delta money.Money, exec ...core.DBExecutor) error {
	if delta == 0 {
		return nil
	}
	_, err := execute(ctx, repo.getExec(exec),
		`UPDATE payments SET amount_paid = amount_paid + ?, remaining_amount = remaining_amount - ?
		WHERE student_id = ? AND major_id = ? AND seq > ?`,
		delta, delta, studentID, majorID, afterSeq)
	return errors.Wrap(err, "shifting payments")
}

func (repo ledgerRepository) DeletePayment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := execute(ctx, repo.getExec(exec), "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	if n == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

func (repo ledgerRepository) DeleteEnrollmentPayments(ctx context.Context, studentID, majorID string, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), "DELETE FROM payments WHERE student_id = ? AND major_id = ?", studentID, majorID)
	return errors.Wrap(err, "deleting enrollment payments")
}
