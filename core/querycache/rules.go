package querycache

type Op int

const (
	Create Op = iota + 1
	Update
	Delete
	// Associate and Dissociate apply to Majors: ID is the major, the tax is irrelevant to the cache.
	Associate
	Dissociate
	// Enroll and Unenroll apply to Students: ID is the student, MajorID the major.
	Enroll
	Unenroll
)

// Mutation describes a successful write, in terms of the keys it may have changed.
type Mutation struct {
	Entity Entity
	Op     Op
	ID     string
	// StudentID and MajorID name the enrollment a payment belongs to.
	StudentID string
	MajorID   string
	// UserID is the staff member who handled a payment. Empty means unknown.
	UserID string
}

// Invalidations returns the keys a mutation invalidates: the entity's collection, its detail on
// update and delete, and every view derived from it. Every mutation is recorded in the activity
// log, which both dashboards fold in, so `logs` and `dashboard.*` are always part of the result.
func Invalidations(m Mutation) []Key {
	var keys []Key
	add := func(ks ...Key) { keys = append(keys, ks...) }
	changed := m.Op == Update || m.Op == Delete

	switch m.Entity {
	case Users:
		add(UserList())
		if changed {
			add(UserDetail(m.ID), CurrentUser(m.ID))
		}
	case Students:
		switch m.Op {
		case Enroll, Unenroll:
			add(StudentMajors(m.ID), PaymentList(), paymentsByUser(m.UserID))
		default:
			add(StudentList())
			if changed {
				add(StudentDetail(m.ID), StudentMajors(m.ID))
			}
		}
	case Majors:
		switch m.Op {
		case Associate, Dissociate:
			add(MajorTaxes(m.ID), StudentMajors(AnyID))
		default:
			add(MajorList(), MajorsGrouped(), ProgramTypeMajors(AnyID))
			if changed {
				add(MajorDetail(m.ID), MajorTaxes(m.ID), StudentMajors(AnyID))
			}
		}
	case ProgramTypes:
		add(ProgramTypeList(), MajorsGrouped())
		if changed {
			add(ProgramTypeDetail(m.ID), ProgramTypeMajors(m.ID))
		}
	case Taxes:
		add(TaxList())
		if changed {
			add(TaxDetail(m.ID), MajorTaxes(AnyID), StudentMajors(AnyID))
		}
	case Payments:
		add(PaymentList(), paymentsByUser(m.UserID))
		if changed {
			add(PaymentDetail(m.ID))
		}
		if m.StudentID != "" {
			add(StudentMajors(m.StudentID))
		} else {
			add(StudentMajors(AnyID))
		}
	}
	add(LogList(), EntityWide(Dashboard))
	return dedupe(keys)
}

func paymentsByUser(userID string) Key {
	if userID == "" {
		return PaymentsByUser(AnyID)
	}
	return PaymentsByUser(userID)
}

func dedupe(keys []Key) []Key {
	seen := make(map[Key]bool, len(keys))
	uniq := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	return uniq
}
