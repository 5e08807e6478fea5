package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/RouahImad/Project-epg-sub000/apps/api/echo"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/money"
	"github.com/RouahImad/Project-epg-sub000/core/user"
	testutil "github.com/RouahImad/Project-epg-sub000/tests"
)

func Test_catalogApi_permissions(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.ma", "", user.RoleAdmin, true)
	adminToken := app.getToken(t, admin)
	mt := testutil.CreateMajorType(t, app.catRepo, "Engineering")
	m := testutil.CreateMajor(t, app.catRepo, mt.ID, "Software", 100000)
	tax := testutil.CreateTax(t, app.catRepo, "Insurance", 5000, m.ID)

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	tests := []httpTest{
		{name: "create type", method: http.MethodPost, path: "/api/program-types", body: []byte(`{"name": "Arts"}`)},
		{name: "update type", method: http.MethodPatch, path: "/api/program-types/" + mt.ID, body: []byte(`{"name": "Arts"}`)},
		{name: "delete type", method: http.MethodDelete, path: "/api/program-types/" + mt.ID},
		{name: "create major", method: http.MethodPost, path: "/api/majors", body: []byte(`{"name": "Networks"}`)},
		{name: "update major", method: http.MethodPatch, path: "/api/majors/" + m.ID, body: []byte(`{"price": 1}`)},
		{name: "delete major", method: http.MethodDelete, path: "/api/majors/" + m.ID},
		{name: "associate tax", method: http.MethodPost, path: "/api/majors/" + m.ID + "/taxes", body: []byte(`{"tax_id": "` + tax.ID + `"}`)},
		{name: "dissociate tax", method: http.MethodDelete, path: "/api/majors/" + m.ID + "/taxes/" + tax.ID},
		{name: "create tax", method: http.MethodPost, path: "/api/taxes", body: []byte(`{"name": "Library"}`)},
		{name: "update tax", method: http.MethodPatch, path: "/api/taxes/" + tax.ID, body: []byte(`{"amount": 1}`)},
		{name: "delete tax", method: http.MethodDelete, path: "/api/taxes/" + tax.ID},
	}
	for _, tt := range tests {
		tt.token = adminToken
		tt.wantCode = http.StatusForbidden
		tt.wantData = forbidden

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("reads are open to staff", func(t *testing.T) {
		for _, path := range []string{
			"/api/program-types", "/api/program-types/" + mt.ID, "/api/program-types/" + mt.ID + "/majors",
			"/api/majors", "/api/majors/grouped", "/api/majors/" + m.ID, "/api/majors/" + m.ID + "/taxes",
			"/api/majors/" + m.ID + "/total-due", "/api/taxes", "/api/taxes/" + tax.ID,
		} {
			rec := app.do(http.MethodGet, path, adminToken)
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})

	t.Run("auth required", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/majors", "")
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})
}

func Test_catalogApi_flow(t *testing.T) {
	app := setup(t)

	super := testutil.CreateUser(t, app.usrRepo, "Boss", "boss", "boss@test.ma", "", user.RoleSuperAdmin, true)
	token := app.getToken(t, super)

	// the lists are read (and cached) before every write below
	require.Equal(t, "[]", trimmed(app.do(http.MethodGet, "/api/majors", token).Body.String()))
	require.Equal(t, "[]", trimmed(app.do(http.MethodGet, "/api/taxes", token).Body.String()))

	var mt catalog.MajorType
	t.Run("create type", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/program-types", token, []byte(`{"name": " Engineering "}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &mt)
		assert.Equal(t, "Engineering", mt.Name)

		rec = app.do(http.MethodPost, "/api/program-types", token, []byte(`{"name": "engineering"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	var m catalog.Major
	t.Run("create major", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/majors", token, []byte(`{"name": "Software", "major_type_id": "`+mt.ID+`", "price": "1000.00", "duration": 36}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &m)
		assert.Equal(t, money.Money(100000), m.Price)

		rec = app.do(http.MethodGet, "/api/majors", token)
		assert.Equal(t, []string{m.ID}, ids(t, rec))
	})

	t.Run("create major: invalid", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "required fields", body: []byte(`{}`),
				wantData: marchallObj(t, map[string]string{"name": "this field is required", "major_type_id": "this field is required"}),
			},
			{
				name: "unknown type", body: []byte(`{"name": "Lol", "major_type_id": "lol"}`),
				wantData: marchallObj(t, map[string]string{"major_type_id": "program type not found"}),
			},
			{
				name: "negative price", body: []byte(`{"name": "Lol", "major_type_id": "` + mt.ID + `", "price": -1}`),
				wantData: marchallObj(t, map[string]string{"price": "this field must be 0 or greater"}),
			},
		}
		for _, tt := range tests {
			tt.method = http.MethodPost
			tt.path = "/api/majors"
			tt.token = token
			tt.wantCode = http.StatusBadRequest

			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}

		rec := app.do(http.MethodPost, "/api/majors", token, []byte(`{"name": "Lol", "major_type_id": "`+mt.ID+`", "price": 1.005}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "more than two decimals")

		rec = app.do(http.MethodPost, "/api/majors", token, []byte(`{"name": "Lol", "major_type_id": "`+mt.ID+`", "price": "184467440737095516.16"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "out of range")
	})

	var tax catalog.Tax
	t.Run("taxes and total due", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/taxes", token, []byte(`{"name": "Insurance", "amount": 150}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &tax)

		rec = app.do(http.MethodGet, "/api/taxes", token)
		assert.Equal(t, []string{tax.ID}, ids(t, rec))

		// read before associating
		rec = app.do(http.MethodGet, "/api/majors/"+m.ID+"/taxes", token)
		require.Equal(t, "[]", trimmed(rec.Body.String()))

		rec = app.do(http.MethodPost, "/api/majors/"+m.ID+"/taxes", token, []byte(`{"tax_id": "`+tax.ID+`"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated, wantData: marchallObj(t, catalog.MajorTax{MajorID: m.ID, TaxID: tax.ID})}, rec)

		rec = app.do(http.MethodGet, "/api/majors/"+m.ID+"/taxes", token)
		assert.Equal(t, []string{tax.ID}, ids(t, rec))

		rec = app.do(http.MethodGet, "/api/majors/"+m.ID+"/total-due", token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.TotalDueResponse{MajorID: m.ID, TotalDue: 115000})}, rec)
		assert.Contains(t, rec.Body.String(), `"total_due":1150.00`)

		// a tax update reaches every major it applies to
		rec = app.do(http.MethodPatch, "/api/taxes/"+tax.ID, token, []byte(`{"amount": 200}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = app.do(http.MethodGet, "/api/majors/"+m.ID+"/total-due", token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.TotalDueResponse{MajorID: m.ID, TotalDue: 120000})}, rec)
	})

	t.Run("grouped", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/majors/grouped", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var grouped []catalog.TypeMajors
		decode(t, rec, &grouped)
		require.Len(t, grouped, 1)
		assert.Equal(t, mt.ID, grouped[0].ID)
		require.Len(t, grouped[0].Majors, 1)
		assert.Equal(t, m.ID, grouped[0].Majors[0].ID)
	})

	t.Run("type in use", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/api/program-types/"+mt.ID, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("dissociate and delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/api/majors/"+m.ID+"/taxes/"+tax.ID, token)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		rec = app.do(http.MethodGet, "/api/majors/"+m.ID+"/taxes", token)
		assert.Equal(t, "[]", trimmed(rec.Body.String()))

		rec = app.do(http.MethodDelete, "/api/majors/"+m.ID, token)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Equal(t, "[]", trimmed(app.do(http.MethodGet, "/api/majors", token).Body.String()))
		assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/api/majors/"+m.ID, token).Code)

		rec = app.do(http.MethodDelete, "/api/taxes/"+tax.ID, token)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Equal(t, "[]", trimmed(app.do(http.MethodGet, "/api/taxes", token).Body.String()))
	})
}
