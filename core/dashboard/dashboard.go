// Package dashboard computes the read-only rollups of the payment and enrollment ledgers shown on the
// admin and super admin dashboards.
//
// Income figures sum the installments of payment rows, since a row's AmountPaid is the running total
// of its enrollment. Outstanding figures sum the positive remaining amount of the latest row of each
// enrollment. That amount was taken against the total due when the row was written, so after a price
// or tax change these figures differ from ledger.Service.Outstanding, which uses the current total due,
// until the next payment row is recorded.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/money"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

// MonthLayout keys the monthly series.
const MonthLayout = "2006-01"

type (
	MonthAmount struct {
		Month  string      `json:"month"`
		Amount money.Money `json:"amount"`
	}

	MonthCount struct {
		Month string `json:"month"`
		Count int    `json:"count"`
	}

	AdminSummary struct {
		MyIncome              money.Money   `json:"my_income"`
		MyStudentsCount       int           `json:"my_students_count"`
		MyOutstandingPayments money.Money   `json:"my_outstanding_payments"`
		MyActivityCount       int           `json:"my_activity_count"`
		PaymentsByMonth       []MonthAmount `json:"payments_by_month"`
		OutstandingByMonth    []MonthAmount `json:"outstanding_by_month"`
		StudentsByMonth       []MonthCount  `json:"students_by_month"`
	}

	SystemStats struct {
		TotalUsers     int         `json:"total_users"`
		ActiveUsers    int         `json:"active_users"`
		TotalMajors    int         `json:"total_majors"`
		AveragePayment money.Money `json:"average_payment"`
	}

	StaffIncome struct {
		UserID   string      `json:"user_id"`
		Name     string      `json:"name"`
		Username string      `json:"username"`
		Role     user.Role   `json:"role"`
		JoinedAt time.Time   `json:"joined_at"`
		Income   money.Money `json:"income"`
	}

	SuperSummary struct {
		TotalIncome        money.Money    `json:"total_income"`
		StudentCount       int            `json:"student_count"`
		OutstandingBalance money.Money    `json:"outstanding_balance"`
		StaffCount         int            `json:"staff_count"`
		SystemStats        SystemStats    `json:"system_stats"`
		SortedStaff        []StaffIncome  `json:"sorted_staff"`
		RecentActivity     []activity.Log `json:"recent_activity"`
		PaymentsByMonth    []MonthAmount  `json:"payments_by_month"`
		OutstandingByMonth []MonthAmount  `json:"outstanding_by_month"`
		StudentsByMonth    []MonthCount   `json:"students_by_month"`
	}
)

type (
	Ledger interface {
		QueryEnrollments(ctx context.Context, filter ledger.EnrollmentFilter) ([]ledger.Enrollment, error)
		QueryPayments(ctx context.Context, filter ledger.PaymentFilter, ordering []core.DBOrdering) ([]ledger.Payment, error)
	}

	Users interface {
		Query(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	Students interface {
		Count(ctx context.Context) (int, error)
	}

	Catalog interface {
		CountMajors(ctx context.Context) (int, error)
	}

	Activity interface {
		Query(ctx context.Context, filter activity.QueryFilter) ([]activity.Log, error)
		Count(ctx context.Context, filter activity.QueryFilter) (int, error)
	}

	Service struct {
		ledger      Ledger
		users       Users
		students    Students
		catalog     Catalog
		activity    Activity
		recentLimit int
	}
)

func NewService(l Ledger, users Users, students Students, cat Catalog, act Activity, conf *core.Config) *Service {
	return &Service{
		ledger:      l,
		users:       users,
		students:    students,
		catalog:     cat,
		activity:    act,
		recentLimit: conf.Dashboard.RecentActivityLimit,
	}
}

// Summary returns the *AdminSummary or *SuperSummary of scope.
func (svc *Service) Summary(ctx context.Context, scope Scope) (interface{}, error) {
	return scope.aggregate(ctx, svc)
}

// Admin returns the figures of the enrollments and payments userID handled.
func (svc *Service) Admin(ctx context.Context, userID string) (*AdminSummary, error) {
	handled, err := svc.ledger.QueryPayments(ctx, ledger.PaymentFilter{HandledBy: userID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying handled payments")
	}
	enrolled, err := svc.ledger.QueryEnrollments(ctx, ledger.EnrollmentFilter{EnrolledBy: userID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	latest, err := svc.ledger.QueryPayments(ctx, ledger.PaymentFilter{LatestOnly: true}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying balances")
	}
	activityCount, err := svc.activity.Count(ctx, activity.QueryFilter{UserID: userID})
	if err != nil {
		return nil, errors.Wrap(err, "counting activity")
	}

	mine := make(map[enrollmentKey]bool)
	students := make(map[string]bool)
	for _, p := range handled {
		mine[keyOf(p.StudentID, p.MajorID)] = true
		students[p.StudentID] = true
	}
	for _, e := range enrolled {
		students[e.StudentID] = true
	}
	var balances []ledger.Payment
	for _, p := range latest {
		if mine[keyOf(p.StudentID, p.MajorID)] {
			balances = append(balances, p)
		}
	}

	return &AdminSummary{
		MyIncome:              income(handled),
		MyStudentsCount:       len(students),
		MyOutstandingPayments: outstanding(balances),
		MyActivityCount:       activityCount,
		PaymentsByMonth:       paymentsByMonth(handled),
		OutstandingByMonth:    outstandingByMonth(balances),
		StudentsByMonth:       studentsByMonth(enrolled),
	}, nil
}

// Super returns the institute-wide figures.
func (svc *Service) Super(ctx context.Context) (*SuperSummary, error) {
	payments, err := svc.ledger.QueryPayments(ctx, ledger.PaymentFilter{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	latest, err := svc.ledger.QueryPayments(ctx, ledger.PaymentFilter{LatestOnly: true}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying balances")
	}
	enrollments, err := svc.ledger.QueryEnrollments(ctx, ledger.EnrollmentFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	users, err := svc.users.Query(ctx, user.QueryFilter{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	studentCount, err := svc.students.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting students")
	}
	majorCount, err := svc.catalog.CountMajors(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting majors")
	}
	recent := []activity.Log{}
	if svc.recentLimit > 0 {
		if recent, err = svc.activity.Query(ctx, activity.QueryFilter{Limit: svc.recentLimit}); err != nil {
			return nil, errors.Wrap(err, "querying recent activity")
		}
	}

	total := income(payments)
	active := 0
	for _, u := range users {
		if u.IsActive {
			active++
		}
	}

	return &SuperSummary{
		TotalIncome:        total,
		StudentCount:       studentCount,
		OutstandingBalance: outstanding(latest),
		StaffCount:         len(users),
		SystemStats: SystemStats{
			TotalUsers:     len(users),
			ActiveUsers:    active,
			TotalMajors:    majorCount,
			AveragePayment: averagePayment(total, len(payments)),
		},
		SortedStaff:        sortedStaff(users, payments),
		RecentActivity:     recent,
		PaymentsByMonth:    paymentsByMonth(payments),
		OutstandingByMonth: outstandingByMonth(latest),
		StudentsByMonth:    studentsByMonth(enrollments),
	}, nil
}

type enrollmentKey struct{ studentID, majorID string }

func keyOf(studentID, majorID string) enrollmentKey { return enrollmentKey{studentID, majorID} }

func month(t time.Time) string { return t.UTC().Format(MonthLayout) }

func income(payments []ledger.Payment) money.Money {
	var total money.Money
	for _, p := range payments {
		total += p.Installment
	}
	return total
}

// outstanding sums the positive balances of latest rows; overpaid enrollments count as settled.
func outstanding(latest []ledger.Payment) money.Money {
	var total money.Money
	for _, p := range latest {
		if p.RemainingAmount.IsPositive() {
			total += p.RemainingAmount
		}
	}
	return total
}

// averagePayment is 0 when there are no payments.
func averagePayment(total money.Money, count int) money.Money {
	if count == 0 {
		return 0
	}
	return total.DivRound(int64(count))
}

func paymentsByMonth(payments []ledger.Payment) []MonthAmount {
	sums := make(map[string]money.Money)
	for _, p := range payments {
		sums[month(p.PaidAt)] += p.Installment
	}
	return amountSeries(sums)
}

// outstandingByMonth buckets each enrollment's balance by the month of its latest movement.
func outstandingByMonth(latest []ledger.Payment) []MonthAmount {
	sums := make(map[string]money.Money)
	for _, p := range latest {
		if p.RemainingAmount.IsPositive() {
			sums[month(p.PaidAt)] += p.RemainingAmount
		}
	}
	return amountSeries(sums)
}

func studentsByMonth(enrollments []ledger.Enrollment) []MonthCount {
	students := make(map[string]map[string]bool)
	for _, e := range enrollments {
		m := month(e.EnrollmentDate)
		if students[m] == nil {
			students[m] = make(map[string]bool)
		}
		students[m][e.StudentID] = true
	}
	series := make([]MonthCount, 0, len(students))
	for m, ids := range students {
		series = append(series, MonthCount{Month: m, Count: len(ids)})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })
	return series
}

func amountSeries(sums map[string]money.Money) []MonthAmount {
	series := make([]MonthAmount, 0, len(sums))
	for m, amount := range sums {
		series = append(series, MonthAmount{Month: m, Amount: amount})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })
	return series
}

// sortedStaff ranks every user by income, ties going to the earliest joiner.
func sortedStaff(users []user.User, payments []ledger.Payment) []StaffIncome {
	incomes := make(map[string]money.Money, len(users))
	for _, p := range payments {
		incomes[p.HandledBy] += p.Installment
	}

	staff := make([]StaffIncome, 0, len(users))
	for _, u := range users {
		staff = append(staff, StaffIncome{
			UserID:   u.ID,
			Name:     u.Name,
			Username: u.Username,
			Role:     u.Role,
			JoinedAt: u.CreatedAt,
			Income:   incomes[u.ID],
		})
	}
	sort.Slice(staff, func(i, j int) bool {
		a, b := staff[i], staff[j]
		if a.Income != b.Income {
			return a.Income > b.Income
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
	return staff
}
