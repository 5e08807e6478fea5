package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/RouahImad/Project-epg-sub000/apps/api/echo"
	"github.com/RouahImad/Project-epg-sub000/assets"
	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/dashboard"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/student"
	"github.com/RouahImad/Project-epg-sub000/core/user"
	emailsvc "github.com/RouahImad/Project-epg-sub000/services/email"
	logsvc "github.com/RouahImad/Project-epg-sub000/services/logger"
	sqlxrepos "github.com/RouahImad/Project-epg-sub000/storage/database/sqlx"
	testutil "github.com/RouahImad/Project-epg-sub000/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server

	conf    *core.Config
	db      *sqlx.DB
	usrRepo user.Repository
	catRepo catalog.Repository
	stuRepo student.Repository
	actSvc  *activity.Service
}

func testConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Institute",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Dashboard: core.DashboardConfig{RecentActivityLimit: 5},
	}
}

func setup(t *testing.T) testApp {
	conf := testConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	catRepo := sqlxrepos.NewCatalogRepository(db)
	stuRepo := sqlxrepos.NewStudentRepository(db)

	// set up validation
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	core.ParseEmailTemplates(assets.EmailTemplates, assets.EmailTemplatesDir, logger, true)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	usrSvc := user.NewServiceMock(db, usrRepo, mailSvc, conf)
	catSvc := catalog.NewService(catRepo)
	stuSvc := student.NewService(stuRepo)
	actSvc := activity.NewService(sqlxrepos.NewActivityRepository(db))
	ledgerSvc := ledger.NewService(db, sqlxrepos.NewLedgerRepository(db), catSvc, stuSvc)

	// set up server
	server := echoapi.NewServer(&echoapi.Deps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Cache:          querycache.NewCache(0, logger),
		UserSvc:        usrSvc,
		CatalogSvc:     catSvc,
		StudentSvc:     stuSvc,
		LedgerSvc:      ledgerSvc,
		DashboardSvc:   dashboard.NewService(ledgerSvc, usrSvc, stuSvc, catSvc, actSvc, conf),
		ActivitySvc:    actSvc,
		DisableReqLogs: true,
	})

	return testApp{
		Server:  server,
		conf:    conf,
		db:      db,
		usrRepo: usrRepo,
		catRepo: catRepo,
		stuRepo: stuRepo,
		actSvc:  actSvc,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves one request and returns its recorder.
func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app testApp) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.UserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// decode unmarshals the body of rec into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func trimmed(s string) string { return strings.TrimSpace(s) }

// ids returns the `id` of every object of the JSON list in rec.
func ids(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var objs []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &objs)
	res := make([]string, 0, len(objs))
	for _, o := range objs {
		res = append(res, o.ID)
	}
	return res
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
