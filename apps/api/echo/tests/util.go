package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/urfu-lab/studyhub/apps/api/echo"
	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/auth"
	"github.com/urfu-lab/studyhub/core/catalog"
	"github.com/urfu-lab/studyhub/core/grade"
	"github.com/urfu-lab/studyhub/core/refresh"
	"github.com/urfu-lab/studyhub/core/schedule"
	"github.com/urfu-lab/studyhub/core/student"
	appfs "github.com/urfu-lab/studyhub/fs"
	emailsvc "github.com/urfu-lab/studyhub/services/email"
	inmemdb "github.com/urfu-lab/studyhub/storage/database/inmem"
	testutil "github.com/urfu-lab/studyhub/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errNotFound     = httpErr{Error: "not found"}
)

type fixture struct {
	app          Server
	tokens       *auth.Manager
	refreshSvc   *refresh.Service
	mailSvc      *emailsvc.ConsoleServiceMock
	studentRepo  student.Repository
	catalogRepo  catalog.Repository
	gradeRepo    grade.Repository
	scheduleRepo schedule.Repository
	refreshRepo  refresh.Repository
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator, appfs.FS, appfs.CommonPasswords)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, testutil.NopLogger{})

	// set up DB & repos
	db := inmemdb.Open()
	f := fixture{
		studentRepo:  inmemdb.NewStudentRepository(db),
		catalogRepo:  inmemdb.NewCatalogRepository(db),
		gradeRepo:    inmemdb.NewGradeRepository(db),
		scheduleRepo: inmemdb.NewScheduleRepository(db),
		refreshRepo:  inmemdb.NewRefreshRepository(db),
	}

	// set up services
	f.mailSvc = emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})
	f.tokens = auth.NewManager(conf.SecretKey, conf.JWTExpirationDelta, conf.AppName)
	f.refreshSvc = refresh.NewService(f.refreshRepo, conf.RefreshExpirationDelta)

	// set up server
	f.app = NewServer(&Options{
		DisableReqLogs: true,
		TestMode:       true,
		CORSOrigins:    conf.Server.CORSOrigins,
		Logger:         testutil.NopLogger{},
		Validate:       validate,
		Translator:     translator,
		Tokens:         f.tokens,
		RefreshSvc:     f.refreshSvc,
		StudentSvc:     student.NewService(f.studentRepo, f.mailSvc, conf),
		CatalogSvc:     catalog.NewService(f.catalogRepo),
		GradeSvc:       grade.NewService(f.gradeRepo),
		ScheduleSvc:    schedule.NewService(f.scheduleRepo),
	})
	return f
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

func (f fixture) getToken(t *testing.T, st student.Student) string {
	token, err := f.tokens.Issue(auth.Identity{UserID: st.ID, Username: st.Username, FullName: st.FullName})
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (f fixture) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	f.app.ServeHTTP(rec, req)
	return rec
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
	if _, ok := j1.([]interface{}); !ok {
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
