package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/money"
	"github.com/RouahImad/Project-epg-sub000/core/reconcile"
	"github.com/RouahImad/Project-epg-sub000/core/student"
	"github.com/RouahImad/Project-epg-sub000/core/user"
	"github.com/RouahImad/Project-epg-sub000/storage/database/sqlx"
	"github.com/RouahImad/Project-epg-sub000/tests"
)

type fixture struct {
	svc       *ledger.Service
	catSvc    *catalog.Service
	catRepo   catalog.Repository
	stdRepo   student.Repository
	staff     user.User
	major     catalog.Major // 1000.00 + VAT 100.00 + Stamp 50.00
	vat       catalog.Tax
	freeMajor catalog.Major
}

func setup(t *testing.T) fixture {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	catRepo := sqlxrepos.NewCatalogRepository(db)
	stdRepo := sqlxrepos.NewStudentRepository(db)

	staff := testutil.CreateUser(t, usrRepo, "Staff", "staff", "staff@test.com", "", user.RoleAdmin, true)
	mt := testutil.CreateMajorType(t, catRepo, "Engineering")
	major := testutil.CreateMajor(t, catRepo, mt.ID, "Computer Science", money.FromUnits(1000))
	vat := testutil.CreateTax(t, catRepo, "VAT", money.FromUnits(100), major.ID)
	testutil.CreateTax(t, catRepo, "Stamp", money.FromUnits(50), major.ID)
	freeMajor := testutil.CreateMajor(t, catRepo, mt.ID, "Open Course", 0)

	catSvc := catalog.NewService(catRepo)
	return fixture{
		svc:       ledger.NewService(db, sqlxrepos.NewLedgerRepository(db), catSvc, student.NewService(stdRepo)),
		catSvc:    catSvc,
		catRepo:   catRepo,
		stdRepo:   stdRepo,
		staff:     staff,
		major:     major,
		vat:       vat,
		freeMajor: freeMajor,
	}
}

func (f fixture) newStudent(t *testing.T) student.Student {
	return testutil.CreateStudent(t, f.stdRepo, "Jane", "Doe", f.staff.ID)
}

func (f fixture) enroll(t *testing.T, studentID string, paid money.Money) ledger.Payment {
	_, pmt, err := f.svc.Enroll(context.Background(), ledger.NewEnrollment{
		StudentID:  studentID,
		MajorID:    f.major.ID,
		PaidAmount: paid,
	}, f.staff.ID)
	require.NoError(t, err)
	return pmt
}

func requireFieldError(t *testing.T, err error, field string, cause error) {
	t.Helper()
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, field, verr.Fields[0].Field)
	if cause != nil {
		assert.ErrorIs(t, err, cause)
	}
}

func TestService_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		majorID       string
		paid          money.Money
		wantRemaining money.Money
		wantField     string
		wantCause     error
	}{
		{name: "exact payment", majorID: f.major.ID, paid: money.FromUnits(1150), wantRemaining: 0},
		{name: "overpayment accepted", majorID: f.major.ID, paid: money.FromUnits(1300), wantRemaining: money.FromUnits(-150)},
		{name: "partial payment", majorID: f.major.ID, paid: money.MustParse("0.01"), wantRemaining: money.MustParse("1149.99")},
		{name: "nothing paid", majorID: f.freeMajor.ID, paid: 0, wantRemaining: 0},
		{name: "negative amount", majorID: f.major.ID, paid: -1, wantField: "paid_amount", wantCause: reconcile.ErrInvalidAmount},
		{name: "unknown major", majorID: core.NewID(), paid: 1, wantField: "major_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := f.newStudent(t)
			enr, pmt, err := f.svc.Enroll(ctx, ledger.NewEnrollment{StudentID: s.ID, MajorID: tt.majorID, PaidAmount: tt.paid}, f.staff.ID)
			if tt.wantField != "" {
				requireFieldError(t, err, tt.wantField, tt.wantCause)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, s.ID, enr.StudentID)
			assert.Equal(t, f.staff.ID, enr.EnrolledBy)
			assert.Equal(t, 1, pmt.Seq)
			assert.Equal(t, tt.paid, pmt.AmountPaid)
			assert.Equal(t, tt.paid, pmt.Installment)
			assert.Equal(t, tt.wantRemaining, pmt.RemainingAmount)
			assert.Equal(t, pmt.TotalDue-pmt.AmountPaid, pmt.RemainingAmount)
		})
	}

	t.Run("unknown student", func(t *testing.T) {
		_, _, err := f.svc.Enroll(ctx, ledger.NewEnrollment{StudentID: core.NewID(), MajorID: f.major.ID}, f.staff.ID)
		assert.ErrorIs(t, err, student.ErrNotFound)
	})

	t.Run("already enrolled", func(t *testing.T) {
		s := f.newStudent(t)
		f.enroll(t, s.ID, money.FromUnits(100))
		_, _, err := f.svc.Enroll(ctx, ledger.NewEnrollment{StudentID: s.ID, MajorID: f.major.ID}, f.staff.ID)
		requireFieldError(t, err, "major_id", ledger.ErrAlreadyEnrolled)

		pmts, err := f.svc.QueryPayments(ctx, ledger.PaymentFilter{StudentID: s.ID}, nil)
		require.NoError(t, err)
		assert.Len(t, pmts, 1)
	})
}

func TestService_RecordInstallment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.newStudent(t)
	f.enroll(t, s.ID, money.FromUnits(500))

	pmt, err := f.svc.RecordInstallment(ctx, ledger.NewInstallment{StudentID: s.ID, MajorID: f.major.ID, Amount: money.FromUnits(200)}, f.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pmt.Seq)
	assert.Equal(t, money.FromUnits(700), pmt.AmountPaid)
	assert.Equal(t, money.FromUnits(200), pmt.Installment)
	assert.Equal(t, money.FromUnits(450), pmt.RemainingAmount)

	outstanding, err := f.svc.Outstanding(ctx, s.ID, f.major.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(450), outstanding)

	// installments may overpay
	pmt, err = f.svc.RecordInstallment(ctx, ledger.NewInstallment{StudentID: s.ID, MajorID: f.major.ID, Amount: money.FromUnits(500)}, f.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(-50), pmt.RemainingAmount)

	t.Run("zero amount", func(t *testing.T) {
		_, err := f.svc.RecordInstallment(ctx, ledger.NewInstallment{StudentID: s.ID, MajorID: f.major.ID}, f.staff.ID)
		requireFieldError(t, err, "amount", ledger.ErrInvalidInstallment)
	})

	t.Run("not enrolled", func(t *testing.T) {
		other := f.newStudent(t)
		_, err := f.svc.RecordInstallment(ctx, ledger.NewInstallment{StudentID: other.ID, MajorID: f.major.ID, Amount: 1}, f.staff.ID)
		requireFieldError(t, err, "major_id", nil)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_AmendPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.newStudent(t)
	first := f.enroll(t, s.ID, money.FromUnits(500))

	// amount_paid=500, remaining_amount=650
	tests := []struct {
		name          string
		proposed      money.Money
		wantRemaining money.Money
		wantCause     error
	}{
		{name: "decrease", proposed: money.FromUnits(400), wantCause: reconcile.ErrNoIncrease},
		{name: "same amount", proposed: money.FromUnits(500), wantCause: reconcile.ErrNoIncrease},
		{name: "negative", proposed: -1, wantCause: reconcile.ErrInvalidAmount},
		{name: "past total due", proposed: money.FromUnits(1300), wantCause: reconcile.ErrOverpaymentRejected},
		{name: "increase", proposed: money.FromUnits(600), wantRemaining: money.FromUnits(550)},
		{name: "past total due after increase", proposed: money.FromUnits(1300), wantCause: reconcile.ErrOverpaymentRejected},
		{name: "decrease after increase", proposed: money.FromUnits(550), wantCause: reconcile.ErrNoIncrease},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pmt, err := f.svc.AmendPayment(ctx, first.ID, ledger.AmendPayment{AmountPaid: tt.proposed})
			if tt.wantCause != nil {
				requireFieldError(t, err, "amount_paid", tt.wantCause)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.proposed, pmt.AmountPaid)
			assert.Equal(t, tt.wantRemaining, pmt.RemainingAmount)
			assert.Equal(t, tt.proposed, pmt.Installment)

			stored, err := f.svc.GetPayment(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.proposed, stored.AmountPaid)
			assert.Equal(t, tt.wantRemaining, stored.RemainingAmount)
		})
	}

	t.Run("unknown payment", func(t *testing.T) {
		_, err := f.svc.AmendPayment(ctx, core.NewID(), ledger.AmendPayment{AmountPaid: 1})
		assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
	})
}

func TestService_AmendAndDeleteShiftLaterRows(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.newStudent(t)
	first := f.enroll(t, s.ID, money.FromUnits(500))
	second, err := f.svc.RecordInstallment(ctx, ledger.NewInstallment{StudentID: s.ID, MajorID: f.major.ID, Amount: money.FromUnits(200)}, f.staff.ID)
	require.NoError(t, err)

	_, err = f.svc.AmendPayment(ctx, first.ID, ledger.AmendPayment{AmountPaid: money.FromUnits(600)})
	require.NoError(t, err)

	second, err = f.svc.GetPayment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(800), second.AmountPaid)
	assert.Equal(t, money.FromUnits(350), second.RemainingAmount)
	assert.Equal(t, money.FromUnits(200), second.Installment)

	outstanding, err := f.svc.Outstanding(ctx, s.ID, f.major.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(350), outstanding)

	deleted, err := f.svc.DeletePayment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, deleted.ID)
	assert.Equal(t, money.FromUnits(600), deleted.Installment)

	second, err = f.svc.GetPayment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(200), second.AmountPaid)
	assert.Equal(t, money.FromUnits(950), second.RemainingAmount)

	_, err = f.svc.GetPayment(ctx, first.ID)
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
}

func TestService_AmendBoundedByEnrollmentBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("later installments", func(t *testing.T) {
		f := setup(t)
		s := f.newStudent(t)
		first := f.enroll(t, s.ID, money.FromUnits(500))
		second, err := f.svc.RecordInstallment(ctx, ledger.NewInstallment{StudentID: s.ID, MajorID: f.major.ID, Amount: money.FromUnits(600)}, f.staff.ID)
		require.NoError(t, err)
		require.Equal(t, money.FromUnits(50), second.RemainingAmount)

		// first row: amount_paid=500, remaining_amount=650; enrollment: 50 left
		tests := []struct {
			name      string
			proposed  money.Money
			wantCause error
		}{
			{name: "up to the row's own remaining amount", proposed: money.FromUnits(1150), wantCause: reconcile.ErrOverpaymentRejected},
			{name: "one cent past the balance", proposed: money.FromUnits(550) + 1, wantCause: reconcile.ErrOverpaymentRejected},
			{name: "the whole balance", proposed: money.FromUnits(550)},
			{name: "nothing left", proposed: money.FromUnits(560), wantCause: reconcile.ErrOverpaymentRejected},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.AmendPayment(ctx, first.ID, ledger.AmendPayment{AmountPaid: tt.proposed})
				if tt.wantCause != nil {
					requireFieldError(t, err, "amount_paid", tt.wantCause)
					return
				}
				require.NoError(t, err)
			})
		}

		amended, err := f.svc.GetPayment(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromUnits(550), amended.AmountPaid)
		assert.Equal(t, money.FromUnits(600), amended.RemainingAmount)
		latest, err := f.svc.GetPayment(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromUnits(1150), latest.AmountPaid)
		assert.Zero(t, latest.RemainingAmount)
		outstanding, err := f.svc.Outstanding(ctx, s.ID, f.major.ID)
		require.NoError(t, err)
		assert.Zero(t, outstanding)
	})

	t.Run("total due lowered since the payment", func(t *testing.T) {
		f := setup(t)
		s := f.newStudent(t)
		first := f.enroll(t, s.ID, money.FromUnits(500))
		require.NoError(t, f.catSvc.DeleteTax(ctx, f.vat.ID))

		_, err := f.svc.AmendPayment(ctx, first.ID, ledger.AmendPayment{AmountPaid: money.FromUnits(1100)})
		requireFieldError(t, err, "amount_paid", reconcile.ErrOverpaymentRejected)

		pmt, err := f.svc.AmendPayment(ctx, first.ID, ledger.AmendPayment{AmountPaid: money.FromUnits(1050)})
		require.NoError(t, err)
		outstanding, err := f.svc.Outstanding(ctx, s.ID, f.major.ID)
		require.NoError(t, err)
		assert.Zero(t, outstanding)
		assert.Equal(t, money.FromUnits(100), pmt.RemainingAmount, "the row keeps its recorded total due")
	})

	t.Run("deleted major keeps the recorded balance", func(t *testing.T) {
		f := setup(t)
		s := f.newStudent(t)
		first := f.enroll(t, s.ID, money.FromUnits(500))
		require.NoError(t, f.catSvc.DeleteMajor(ctx, f.major.ID))

		_, err := f.svc.AmendPayment(ctx, first.ID, ledger.AmendPayment{AmountPaid: money.FromUnits(1150) + 1})
		requireFieldError(t, err, "amount_paid", reconcile.ErrOverpaymentRejected)
		_, err = f.svc.AmendPayment(ctx, first.ID, ledger.AmendPayment{AmountPaid: money.FromUnits(1150)})
		assert.NoError(t, err)
	})
}

func TestService_Unenroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.newStudent(t)
	f.enroll(t, s.ID, money.FromUnits(500))
	_, err := f.svc.RecordInstallment(ctx, ledger.NewInstallment{StudentID: s.ID, MajorID: f.major.ID, Amount: money.FromUnits(100)}, f.staff.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Unenroll(ctx, s.ID, f.major.ID))

	pmts, err := f.svc.QueryPayments(ctx, ledger.PaymentFilter{StudentID: s.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, pmts)
	sms, err := f.svc.StudentMajors(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, sms)

	assert.ErrorIs(t, f.svc.Unenroll(ctx, s.ID, f.major.ID), ledger.ErrEnrollmentNotFound)

	// enrolling again starts a new history
	pmt := f.enroll(t, s.ID, money.FromUnits(50))
	assert.Equal(t, 1, pmt.Seq)
	assert.Equal(t, money.FromUnits(1100), pmt.RemainingAmount)
}

func TestService_StudentMajors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.newStudent(t)
	f.enroll(t, s.ID, money.FromUnits(500))
	_, _, err := f.svc.Enroll(ctx, ledger.NewEnrollment{StudentID: s.ID, MajorID: f.freeMajor.ID}, f.staff.ID)
	require.NoError(t, err)

	sms, err := f.svc.StudentMajors(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, sms, 2)
	byMajor := map[string]ledger.StudentMajor{sms[0].MajorID: sms[0], sms[1].MajorID: sms[1]}

	cs := byMajor[f.major.ID]
	assert.Equal(t, "Computer Science", cs.Major.Name)
	assert.Equal(t, money.FromUnits(1150), cs.TotalDue)
	assert.Equal(t, money.FromUnits(500), cs.AmountPaid)
	assert.Equal(t, money.FromUnits(650), cs.Outstanding)
	assert.Zero(t, byMajor[f.freeMajor.ID].Outstanding)

	t.Run("deleting a tax lowers the total due", func(t *testing.T) {
		require.NoError(t, f.catSvc.DeleteTax(ctx, f.vat.ID))
		sms, err := f.svc.StudentMajors(ctx, s.ID)
		require.NoError(t, err)
		for _, sm := range sms {
			if sm.MajorID == f.major.ID {
				assert.Equal(t, money.FromUnits(1050), sm.TotalDue)
				assert.Equal(t, money.FromUnits(550), sm.Outstanding)
			}
		}
	})

	t.Run("deleted major keeps its recorded total due", func(t *testing.T) {
		require.NoError(t, f.catSvc.DeleteMajor(ctx, f.major.ID))
		sms, err := f.svc.StudentMajors(ctx, s.ID)
		require.NoError(t, err)
		for _, sm := range sms {
			if sm.MajorID == f.major.ID {
				assert.True(t, sm.MajorDeleted)
				assert.Equal(t, money.FromUnits(1150), sm.TotalDue)
				assert.Equal(t, money.FromUnits(650), sm.Outstanding)
			}
		}
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := f.svc.StudentMajors(ctx, core.NewID())
		assert.ErrorIs(t, err, student.ErrNotFound)
	})
}
