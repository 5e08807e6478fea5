// Package reconcile derives the money figures of an enrollment from the catalog and the payment
// ledger, and validates payment amounts before they are written.
//
// Every figure is computed in integer minor units. Errors are returned as values; the ledger
// attaches them to the offending field.
package reconcile

import (
	"context"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/money"
)

var (
	ErrNotFound            = core.NewNotFoundError("major")
	ErrInvalidAmount       = errors.New("amount must be a positive number or zero")
	ErrNoIncrease          = errors.New("amended amount must be greater than the amount already paid")
	ErrOverpaymentRejected = errors.New("amended amount cannot exceed the total due")
)

type (
	// CatalogReader is the part of the catalog the engine reads.
	CatalogReader interface {
		GetMajor(ctx context.Context, id string) (catalog.Major, error)
		QueryMajorTaxes(ctx context.Context, majorID string) ([]catalog.Tax, error)
	}

	// PaidReader returns the running total of the latest payment of an enrollment.
	// ok is false when the enrollment has no payment yet.
	PaidReader interface {
		LatestAmountPaid(ctx context.Context, studentID, majorID string) (paid money.Money, ok bool, err error)
	}

	// PaymentState is what an amendment is validated against: the running total of a payment row
	// and the balance an increase may still cover. Later rows shift with the amended one, so that
	// balance is the enrollment's, not the row's own remaining amount.
	PaymentState struct {
		AmountPaid      money.Money
		RemainingAmount money.Money
	}

	Engine struct {
		catalog CatalogReader
		paid    PaidReader
	}
)

// TotalDue is the row's total due: what was paid plus what remains.
func (ps PaymentState) TotalDue() money.Money {
	return ps.AmountPaid + ps.RemainingAmount
}

func NewEngine(cat CatalogReader, paid PaidReader) *Engine {
	return &Engine{catalog: cat, paid: paid}
}

// TotalDue is the price of a major plus the amount of every tax applied to it.
func TotalDue(price money.Money, taxes ...catalog.Tax) money.Money {
	total := price
	for _, t := range taxes {
		total += t.Amount
	}
	return total
}

// ComputeTotalDue derives the total due of a major from its current price and taxes.
func (e *Engine) ComputeTotalDue(ctx context.Context, majorID string) (money.Money, error) {
	m, err := e.catalog.GetMajor(ctx, majorID)
	if err != nil {
		if core.IsNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "finding major by ID")
	}
	taxes, err := e.catalog.QueryMajorTaxes(ctx, majorID)
	if err != nil {
		return 0, errors.Wrap(err, "querying major taxes")
	}
	return TotalDue(m.Price, taxes...), nil
}

// ComputeOutstanding is the total due of a major minus the running total of the enrollment's latest
// payment. A negative result means the student overpaid; it is not clamped.
func (e *Engine) ComputeOutstanding(ctx context.Context, studentID, majorID string) (money.Money, error) {
	totalDue, err := e.ComputeTotalDue(ctx, majorID)
	if err != nil {
		return 0, err
	}
	paid, _, err := e.paid.LatestAmountPaid(ctx, studentID, majorID)
	if err != nil {
		return 0, errors.Wrap(err, "finding latest amount paid")
	}
	return totalDue - paid, nil
}

// ValidateEnrollmentPayment checks the amount paid when enrolling and returns the remaining balance.
// Paying more than the total due is accepted; the remaining balance is then negative.
func ValidateEnrollmentPayment(totalDue, paid money.Money) (money.Money, error) {
	if paid.IsNegative() {
		return 0, ErrInvalidAmount
	}
	return totalDue - paid, nil
}

// ValidateEnrollmentPayment is ValidateEnrollmentPayment against the current total due of a major.
func (e *Engine) ValidateEnrollmentPayment(ctx context.Context, majorID string, paid money.Money) (money.Money, error) {
	if paid.IsNegative() {
		return 0, ErrInvalidAmount
	}
	totalDue, err := e.ComputeTotalDue(ctx, majorID)
	if err != nil {
		return 0, err
	}
	return ValidateEnrollmentPayment(totalDue, paid)
}

// ValidateAmendment checks a proposed new running total for an existing payment and returns the new
// remaining balance. The first failing rule wins:
//  1. proposed >= 0
//  2. proposed > existing.AmountPaid
//  3. proposed <= existing.AmountPaid + existing.RemainingAmount
func ValidateAmendment(existing PaymentState, proposed money.Money) (money.Money, error) {
	switch {
	case proposed.IsNegative():
		return 0, ErrInvalidAmount
	case proposed <= existing.AmountPaid:
		return 0, ErrNoIncrease
	case proposed > existing.AmountPaid+existing.RemainingAmount:
		return 0, ErrOverpaymentRejected
	}
	return existing.TotalDue() - proposed, nil
}
