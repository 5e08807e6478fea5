package querycache

// Entity is a top-level subtree of the key namespace.
type Entity int

const (
	Users Entity = iota + 1
	Students
	Majors
	ProgramTypes
	Taxes
	Payments
	Dashboard
	Logs
	Auth
)

var entityNames = map[Entity]string{
	Users:        "users",
	Students:     "students",
	Majors:       "majors",
	ProgramTypes: "programTypes",
	Taxes:        "taxes",
	Payments:     "payments",
	Dashboard:    "dashboard",
	Logs:         "logs",
	Auth:         "auth",
}

func (e Entity) String() string {
	if name, ok := entityNames[e]; ok {
		return name
	}
	return "unknown"
}

// View names a view inside an entity's subtree. The zero View is the entity's collection.
type View string

const (
	ViewAll         View = ""
	ViewDetail      View = "detail"
	ViewMajors      View = "majors"
	ViewTaxes       View = "taxes"
	ViewGrouped     View = "grouped"
	ViewByUser      View = "byUser"
	ViewAdmin       View = "admin"
	ViewSuper       View = "super"
	ViewCurrentUser View = "currentUser"

	// AnyView and AnyID turn a Key into a pattern.
	AnyView View = "*"
)

const AnyID = "*"

// Key identifies a cached view. Keys are comparable and may be used as map keys.
type Key struct {
	Entity Entity
	View   View
	ID     string
}

// String renders the dotted form of the key, e.g. "majors.taxes(42)" or "dashboard.*".
func (k Key) String() string {
	s := k.Entity.String()
	if k.View == ViewAll {
		return s
	}
	s += "." + string(k.View)
	switch {
	case k.ID != "":
		s += "(" + k.ID + ")"
	case k.View == ViewGrouped:
		s += "()"
	}
	return s
}

// Matches reports whether target is covered by k, k being a key or a pattern.
func (k Key) Matches(target Key) bool {
	if k.Entity != target.Entity {
		return false
	}
	if k.View == AnyView {
		return true
	}
	if k.View != target.View {
		return false
	}
	return k.ID == AnyID || k.ID == target.ID
}

func UserList() Key            { return Key{Entity: Users} }
func UserDetail(id string) Key { return Key{Entity: Users, View: ViewDetail, ID: id} }

func StudentList() Key                { return Key{Entity: Students} }
func StudentDetail(id string) Key     { return Key{Entity: Students, View: ViewDetail, ID: id} }
func StudentMajors(id string) Key     { return Key{Entity: Students, View: ViewMajors, ID: id} }
func MajorList() Key                  { return Key{Entity: Majors} }
func MajorDetail(id string) Key       { return Key{Entity: Majors, View: ViewDetail, ID: id} }
func MajorTaxes(id string) Key        { return Key{Entity: Majors, View: ViewTaxes, ID: id} }
func MajorsGrouped() Key              { return Key{Entity: Majors, View: ViewGrouped} }
func ProgramTypeList() Key            { return Key{Entity: ProgramTypes} }
func ProgramTypeDetail(id string) Key { return Key{Entity: ProgramTypes, View: ViewDetail, ID: id} }
func ProgramTypeMajors(id string) Key { return Key{Entity: ProgramTypes, View: ViewMajors, ID: id} }
func TaxList() Key                    { return Key{Entity: Taxes} }
func TaxDetail(id string) Key         { return Key{Entity: Taxes, View: ViewDetail, ID: id} }
func PaymentList() Key                { return Key{Entity: Payments} }
func PaymentDetail(id string) Key     { return Key{Entity: Payments, View: ViewDetail, ID: id} }
func PaymentsByUser(id string) Key    { return Key{Entity: Payments, View: ViewByUser, ID: id} }

func DashboardAdmin(userID string) Key { return Key{Entity: Dashboard, View: ViewAdmin, ID: userID} }
func DashboardSuper() Key              { return Key{Entity: Dashboard, View: ViewSuper} }

func LogList() Key { return Key{Entity: Logs} }

func CurrentUser(id string) Key { return Key{Entity: Auth, View: ViewCurrentUser, ID: id} }

// EntityWide matches every key of an entity's subtree.
func EntityWide(e Entity) Key { return Key{Entity: e, View: AnyView} }
