package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/money"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

type fakeLedger struct {
	enrollments []ledger.Enrollment
	payments    []ledger.Payment
}

func (fl fakeLedger) QueryEnrollments(_ context.Context, filter ledger.EnrollmentFilter) ([]ledger.Enrollment, error) {
	var res []ledger.Enrollment
	for _, e := range fl.enrollments {
		if filter.EnrolledBy == "" || e.EnrolledBy == filter.EnrolledBy {
			res = append(res, e)
		}
	}
	return res, nil
}

func (fl fakeLedger) QueryPayments(_ context.Context, filter ledger.PaymentFilter, _ []core.DBOrdering) ([]ledger.Payment, error) {
	latest := make(map[enrollmentKey]int)
	for _, p := range fl.payments {
		if k := keyOf(p.StudentID, p.MajorID); p.Seq > latest[k] {
			latest[k] = p.Seq
		}
	}
	var res []ledger.Payment
	for _, p := range fl.payments {
		if filter.HandledBy != "" && p.HandledBy != filter.HandledBy {
			continue
		}
		if filter.LatestOnly && latest[keyOf(p.StudentID, p.MajorID)] != p.Seq {
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

type fakeUsers []user.User

func (fu fakeUsers) Query(context.Context, user.QueryFilter, []core.DBOrdering) ([]user.User, error) {
	return fu, nil
}

type fakeCount int

func (fc fakeCount) Count(context.Context) (int, error)       { return int(fc), nil }
func (fc fakeCount) CountMajors(context.Context) (int, error) { return int(fc), nil }

type fakeActivity []activity.Log

func (fa fakeActivity) Query(_ context.Context, filter activity.QueryFilter) ([]activity.Log, error) {
	if filter.Limit > 0 && filter.Limit < len(fa) {
		return fa[:filter.Limit], nil
	}
	return fa, nil
}

func (fa fakeActivity) Count(_ context.Context, filter activity.QueryFilter) (int, error) {
	n := 0
	for _, l := range fa {
		if filter.UserID == "" || l.UserID == filter.UserID {
			n++
		}
	}
	return n, nil
}

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 10, 0, 0, 0, time.UTC) }

func payment(id, studentID, majorID string, seq int, installment, amountPaid int64, handledBy string, paidAt time.Time) ledger.Payment {
	const totalDue = 100000
	return ledger.Payment{
		ID:              id,
		StudentID:       studentID,
		MajorID:         majorID,
		Seq:             seq,
		Installment:     money.Money(installment),
		AmountPaid:      money.Money(amountPaid),
		RemainingAmount: money.Money(totalDue - amountPaid),
		TotalDue:        totalDue,
		HandledBy:       handledBy,
		PaidAt:          paidAt,
	}
}

func newTestService() *Service {
	l := fakeLedger{
		enrollments: []ledger.Enrollment{
			{StudentID: "s1", MajorID: "m1", EnrolledBy: "u1", EnrollmentDate: date(2024, 1, 10)},
			{StudentID: "s2", MajorID: "m1", EnrolledBy: "u2", EnrollmentDate: date(2024, 2, 5)},
			{StudentID: "s3", MajorID: "m2", EnrolledBy: "u1", EnrollmentDate: date(2024, 2, 20)},
		},
		payments: []ledger.Payment{
			payment("p1", "s1", "m1", 1, 30000, 30000, "u1", date(2024, 1, 10)),
			payment("p2", "s1", "m1", 2, 20000, 50000, "u2", date(2024, 2, 15)),
			payment("p3", "s2", "m1", 1, 100000, 100000, "u2", date(2024, 2, 5)),
			payment("p4", "s3", "m2", 1, 120000, 120000, "u1", date(2024, 2, 20)), // overpaid
		},
	}
	users := fakeUsers{
		{ID: "u1", Name: "Amal", Role: user.RoleAdmin, IsActive: true, CreatedAt: date(2024, 1, 1)},
		{ID: "u2", Name: "Karim", Role: user.RoleAdmin, IsActive: true, CreatedAt: date(2023, 6, 1)},
		{ID: "u3", Name: "Salma", Role: user.RoleSuperAdmin, CreatedAt: date(2022, 1, 1)},
	}
	logs := fakeActivity{
		{ID: "l3", UserID: "u1", Action: activity.ActionAmend, Entity: "payment"},
		{ID: "l2", UserID: "u2", Action: activity.ActionCreate, Entity: "payment"},
		{ID: "l1", UserID: "u1", Action: activity.ActionEnroll, Entity: "student"},
	}
	conf := &core.Config{Dashboard: core.DashboardConfig{RecentActivityLimit: 2}}
	return NewService(l, users, fakeCount(5), fakeCount(4), logs, conf)
}

func TestService_Admin(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		userID string
		want   *AdminSummary
	}{
		{
			userID: "u1",
			want: &AdminSummary{
				MyIncome:              150000,
				MyStudentsCount:       2,
				MyOutstandingPayments: 50000,
				MyActivityCount:       2,
				PaymentsByMonth:       []MonthAmount{{"2024-01", 30000}, {"2024-02", 120000}},
				OutstandingByMonth:    []MonthAmount{{"2024-02", 50000}},
				StudentsByMonth:       []MonthCount{{"2024-01", 1}, {"2024-02", 1}},
			},
		},
		{
			userID: "u2",
			want: &AdminSummary{
				MyIncome:              120000,
				MyStudentsCount:       2,
				MyOutstandingPayments: 50000,
				MyActivityCount:       1,
				PaymentsByMonth:       []MonthAmount{{"2024-02", 120000}},
				OutstandingByMonth:    []MonthAmount{{"2024-02", 50000}},
				StudentsByMonth:       []MonthCount{{"2024-02", 1}},
			},
		},
		{
			userID: "u3",
			want: &AdminSummary{
				PaymentsByMonth:    []MonthAmount{},
				OutstandingByMonth: []MonthAmount{},
				StudentsByMonth:    []MonthCount{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			got, err := svc.Admin(context.Background(), tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Super(t *testing.T) {
	svc := newTestService()

	got, err := svc.Super(context.Background())
	require.NoError(t, err)

	assert.Equal(t, money.Money(270000), got.TotalIncome)
	assert.Equal(t, 5, got.StudentCount)
	assert.Equal(t, money.Money(50000), got.OutstandingBalance)
	assert.Equal(t, 3, got.StaffCount)
	assert.Equal(t, SystemStats{TotalUsers: 3, ActiveUsers: 2, TotalMajors: 4, AveragePayment: 67500}, got.SystemStats)
	assert.Equal(t, []MonthAmount{{"2024-01", 30000}, {"2024-02", 240000}}, got.PaymentsByMonth)
	assert.Equal(t, []MonthAmount{{"2024-02", 50000}}, got.OutstandingByMonth)
	assert.Equal(t, []MonthCount{{"2024-01", 1}, {"2024-02", 2}}, got.StudentsByMonth)

	var ranking []string
	for _, s := range got.SortedStaff {
		ranking = append(ranking, s.UserID)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, ranking)
	assert.Equal(t, money.Money(150000), got.SortedStaff[0].Income)

	require.Len(t, got.RecentActivity, 2)
	assert.Equal(t, "l3", got.RecentActivity[0].ID)
}

func TestService_SuperWithoutPayments(t *testing.T) {
	conf := &core.Config{}
	svc := NewService(fakeLedger{}, fakeUsers{}, fakeCount(0), fakeCount(0), fakeActivity{}, conf)

	got, err := svc.Super(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.SystemStats.AveragePayment)
	assert.Zero(t, got.TotalIncome)
	assert.Empty(t, got.SortedStaff)
	assert.NotNil(t, got.RecentActivity)
}

func TestSortedStaff_Ties(t *testing.T) {
	users := []user.User{
		{ID: "b", CreatedAt: date(2024, 3, 1)},
		{ID: "a", CreatedAt: date(2024, 3, 1)},
		{ID: "c", CreatedAt: date(2023, 3, 1)},
		{ID: "d", CreatedAt: date(2025, 3, 1)},
	}
	payments := []ledger.Payment{
		{HandledBy: "a", Installment: 500},
		{HandledBy: "b", Installment: 500},
		{HandledBy: "c", Installment: 200},
		{HandledBy: "c", Installment: 300},
		{HandledBy: "d", Installment: 501},
	}

	var ids []string
	for _, s := range sortedStaff(users, payments) {
		ids = append(ids, s.UserID)
	}
	assert.Equal(t, []string{"d", "c", "a", "b"}, ids)
}

func TestAveragePayment(t *testing.T) {
	tests := []struct {
		total money.Money
		count int
		want  money.Money
	}{
		{total: 0, count: 0, want: 0},
		{total: 100, count: 3, want: 33},
		{total: 5, count: 2, want: 2},  // 0.025 rounds to even
		{total: 15, count: 2, want: 8}, // 0.075 rounds to even
		{total: 270000, count: 4, want: 67500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, averagePayment(tt.total, tt.count), "%s / %d", tt.total, tt.count)
	}
}

func TestPaymentsByMonth_KeepsSinglePointBuckets(t *testing.T) {
	series := paymentsByMonth([]ledger.Payment{
		{Installment: 100, PaidAt: date(2024, 12, 31)},
		{Installment: 100, PaidAt: date(2023, 12, 1)},
		{Installment: 50, PaidAt: date(2024, 12, 1)},
	})
	assert.Equal(t, []MonthAmount{{"2023-12", 100}, {"2024-12", 150}}, series)
}

func TestScopeFor(t *testing.T) {
	admin := user.User{ID: "u1", Role: user.RoleAdmin}
	super := user.User{ID: "u3", Role: user.RoleSuperAdmin}

	assert.Equal(t, AdminScope{UserID: "u1"}, ScopeFor(admin))
	assert.Equal(t, SuperAdminScope{}, ScopeFor(super))
	assert.Equal(t, querycache.DashboardAdmin("u1"), ScopeFor(admin).CacheKey())
	assert.Equal(t, querycache.DashboardSuper(), ScopeFor(super).CacheKey())

	svc := newTestService()
	got, err := svc.Summary(context.Background(), ScopeFor(admin))
	require.NoError(t, err)
	assert.IsType(t, &AdminSummary{}, got)

	got, err = svc.Summary(context.Background(), ScopeFor(super))
	require.NoError(t, err)
	assert.IsType(t, &SuperSummary{}, got)
}
