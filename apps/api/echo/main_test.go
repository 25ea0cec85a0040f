package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/tutorly/apps/api/echo"
	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/auth"
	"github.com/trezcool/tutorly/core/dashboard"
	"github.com/trezcool/tutorly/core/document"
	"github.com/trezcool/tutorly/core/payment"
	"github.com/trezcool/tutorly/core/review"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
	blobsvc "github.com/trezcool/tutorly/services/blob"
	emailsvc "github.com/trezcool/tutorly/services/email"
	inmemdb "github.com/trezcool/tutorly/storage/database/inmem"
	"github.com/trezcool/tutorly/storage/database/records"
	"github.com/trezcool/tutorly/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fakeProcessor struct {
	mu      sync.Mutex
	intents []payment.Intent
	err     error
	event   payment.Event
}

func (p *fakeProcessor) CreateIntent(_ context.Context, intent payment.Intent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.intents = append(p.intents, intent)
	return "pi_secret_test", nil
}

func (p *fakeProcessor) ParseWebhook(_ []byte, signature string) (payment.Event, error) {
	if signature != "valid" {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	return p.event, nil
}

type testApp struct {
	conf      *core.Config
	server    *Server
	repo      *records.Repository
	processor *fakeProcessor
	uploads   string
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Storage.LocalDir = t.TempDir()
	logger := testutil.NewLogger(conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	document.InitValidators(validate, translator)

	repo := records.NewRepository(inmemdb.NewStore())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	blobs, err := blobsvc.NewLocalStore(conf)
	if err != nil {
		t.Fatalf("NewLocalStore() failed: %v", err)
	}

	usrSvc := user.NewService(repo, mailSvc)
	sessSvc := session.NewService(repo, usrSvc)
	docSvc := document.NewService(repo, blobs)
	reviewSvc := review.NewService(repo, sessSvc, usrSvc)
	processor := new(fakeProcessor)

	server := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		AuthClient:   auth.NewClient(auth.NewLocalProvider(conf, usrSvc), logger),
		UserSvc:      usrSvc,
		SessionSvc:   sessSvc,
		DocumentSvc:  docSvc,
		ReviewSvc:    reviewSvc,
		DashboardSvc: dashboard.NewService(sessSvc, reviewSvc),
		PaymentSvc:   payment.NewService(conf, processor, sessSvc, usrSvc, mailSvc, logger),
		UploadsDir:   blobs.Dir(),
	})
	return &testApp{conf: conf, server: server, repo: repo, processor: processor, uploads: blobs.Dir()}
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	app.server.ServeHTTP(rec, req)
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

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(app.conf, GetUserClaims(app.conf, usr))
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

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding %q failed: %v", rec.Body.String(), err)
	}
}
