package querycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func invalidates(keys []Key, target Key) bool {
	for _, k := range keys {
		if k.Matches(target) {
			return true
		}
	}
	return false
}

func TestKey_String(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{key: UserList(), want: "users"},
		{key: UserDetail("7"), want: "users.detail(7)"},
		{key: StudentMajors("3"), want: "students.majors(3)"},
		{key: MajorTaxes("42"), want: "majors.taxes(42)"},
		{key: MajorsGrouped(), want: "majors.grouped()"},
		{key: ProgramTypeMajors("1"), want: "programTypes.majors(1)"},
		{key: DashboardSuper(), want: "dashboard.super"},
		{key: DashboardAdmin("u1"), want: "dashboard.admin(u1)"},
		{key: CurrentUser("u1"), want: "auth.currentUser(u1)"},
		{key: EntityWide(Dashboard), want: "dashboard.*"},
		{key: StudentMajors(AnyID), want: "students.majors(*)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
		})
	}
}

func TestKey_Matches(t *testing.T) {
	assert.True(t, MajorTaxes("1").Matches(MajorTaxes("1")))
	assert.False(t, MajorTaxes("1").Matches(MajorTaxes("2")))
	assert.True(t, MajorTaxes(AnyID).Matches(MajorTaxes("2")))
	assert.False(t, MajorTaxes(AnyID).Matches(MajorDetail("2")))
	assert.True(t, EntityWide(Dashboard).Matches(DashboardAdmin("u1")))
	assert.True(t, EntityWide(Dashboard).Matches(DashboardSuper()))
	assert.False(t, EntityWide(Dashboard).Matches(LogList()))
	assert.False(t, MajorList().Matches(MajorsGrouped()))
}

func TestInvalidations(t *testing.T) {
	tests := []struct {
		name     string
		mutation Mutation
		want     []Key
		notWant  []Key
	}{
		{
			name:     "create major",
			mutation: Mutation{Entity: Majors, Op: Create, ID: "m1"},
			want:     []Key{MajorList(), MajorsGrouped(), ProgramTypeMajors("t1")},
			notWant:  []Key{MajorDetail("m1"), MajorTaxes("m1"), TaxList(), StudentMajors("s1"), PaymentList()},
		},
		{
			name:     "update major",
			mutation: Mutation{Entity: Majors, Op: Update, ID: "m1"},
			want:     []Key{MajorList(), MajorDetail("m1"), MajorsGrouped(), StudentMajors("s1")},
			notWant:  []Key{MajorDetail("m2"), TaxList(), PaymentList()},
		},
		{
			name:     "associate tax",
			mutation: Mutation{Entity: Majors, Op: Associate, ID: "m1"},
			want:     []Key{MajorTaxes("m1"), StudentMajors("s1")},
			notWant:  []Key{MajorTaxes("m2"), MajorList(), TaxList()},
		},
		{
			name:     "delete tax",
			mutation: Mutation{Entity: Taxes, Op: Delete, ID: "x1"},
			want:     []Key{TaxList(), MajorTaxes("m1"), MajorTaxes("m2"), StudentMajors("s1")},
			notWant:  []Key{MajorList(), MajorsGrouped(), PaymentList()},
		},
		{
			name:     "create payment",
			mutation: Mutation{Entity: Payments, Op: Create, ID: "p1", StudentID: "s1", MajorID: "m1", UserID: "u1"},
			want:     []Key{PaymentList(), PaymentsByUser("u1"), StudentMajors("s1"), DashboardAdmin("u1"), DashboardAdmin("u2"), DashboardSuper()},
			notWant:  []Key{PaymentsByUser("u2"), StudentMajors("s2"), PaymentDetail("p1"), MajorList(), TaxList(), MajorTaxes("m1")},
		},
		{
			name:     "amend payment",
			mutation: Mutation{Entity: Payments, Op: Update, ID: "p1", StudentID: "s1", UserID: "u1"},
			want:     []Key{PaymentList(), PaymentDetail("p1"), PaymentsByUser("u1"), StudentMajors("s1"), DashboardSuper()},
			notWant:  []Key{PaymentDetail("p2"), StudentList(), StudentDetail("s1")},
		},
		{
			name:     "enroll",
			mutation: Mutation{Entity: Students, Op: Enroll, ID: "s1", MajorID: "m1", UserID: "u1"},
			want:     []Key{StudentMajors("s1"), PaymentList(), PaymentsByUser("u1"), DashboardSuper()},
			notWant:  []Key{StudentList(), StudentDetail("s1"), StudentMajors("s2"), MajorList()},
		},
		{
			name:     "unenroll",
			mutation: Mutation{Entity: Students, Op: Unenroll, ID: "s1", MajorID: "m1"},
			want:     []Key{StudentMajors("s1"), PaymentList(), PaymentsByUser("u1"), PaymentsByUser("u2")},
			notWant:  []Key{StudentList(), StudentMajors("s2")},
		},
		{
			name:     "delete program type",
			mutation: Mutation{Entity: ProgramTypes, Op: Delete, ID: "t1"},
			want:     []Key{ProgramTypeList(), ProgramTypeDetail("t1"), ProgramTypeMajors("t1"), MajorsGrouped()},
			notWant:  []Key{ProgramTypeDetail("t2"), MajorList()},
		},
		{
			name:     "update user",
			mutation: Mutation{Entity: Users, Op: Update, ID: "u1"},
			want:     []Key{UserList(), UserDetail("u1"), CurrentUser("u1"), DashboardSuper()},
			notWant:  []Key{UserDetail("u2"), CurrentUser("u2"), PaymentList()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := Invalidations(tt.mutation)
			for _, k := range append(tt.want, LogList()) {
				assert.True(t, invalidates(keys, k), "%s should be invalidated", k)
			}
			for _, k := range tt.notWant {
				assert.False(t, invalidates(keys, k), "%s should not be invalidated", k)
			}
		})
	}
}

func TestInvalidations_NoDuplicates(t *testing.T) {
	keys := Invalidations(Mutation{Entity: Payments, Op: Delete, ID: "p1"})
	seen := make(map[Key]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "%s listed twice", k)
		seen[k] = true
	}
}
