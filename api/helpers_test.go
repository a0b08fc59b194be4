package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/recruit/api"
	"github.com/garnizeh/recruit/internal/config"
	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/internal/storage"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository/mock"
)

const testSecret = "test-secret"

type queued struct {
	typ     string
	payload []byte
}

// captureQueue records enqueued jobs instead of running them.
type captureQueue struct {
	mu   sync.Mutex
	jobs []queued
}

func (q *captureQueue) Enqueue(ctx context.Context, typ string, payload any, priority, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queued{typ: typ, payload: b})
	return int64(len(q.jobs)), nil
}

func (q *captureQueue) ofType(typ string) []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queued
	for _, j := range q.jobs {
		if j.typ == typ {
			out = append(out, j)
		}
	}
	return out
}

// lastCode returns the code of the latest otp.deliver job for email.
func (q *captureQueue) lastCode(t *testing.T, email string) string {
	t.Helper()
	jobs := q.ofType(otp.JobDeliver)
	for i := len(jobs) - 1; i >= 0; i-- {
		var p otp.DeliverPayload
		if err := json.Unmarshal(jobs[i].payload, &p); err != nil {
			t.Fatalf("decode deliver payload: %v", err)
		}
		if p.Email == email {
			return p.Code
		}
	}
	t.Fatalf("no code delivered to %s", email)
	return ""
}

type testEnv struct {
	store   *mock.Store
	queue   *captureQueue
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := mock.NewStore()
	return newTestEnvFor(t, store, store)
}

// newTestEnvFor routes requests to routed, which usually wraps store.
func newTestEnvFor(t *testing.T, store *mock.Store, routed api.Store) *testEnv {
	t.Helper()
	queue := &captureQueue{}
	resumes, err := storage.NewLocal(t.TempDir(), forms.ResumePolicy)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	cfg := &config.Config{
		JWTSecret:     testSecret,
		TokenDuration: time.Hour,
		Uploads:       config.UploadConfig{MaxBytes: 1 << 20},
		Forms:         config.FormsConfig{EnforceConstraints: true, EditorVariant: "full"},
	}
	svc := otp.NewService(store, queue, testSecret, 5*time.Minute, 30*time.Minute, nil)
	h := api.SetupRoutes(cfg, "test", "now", api.Deps{
		Store:   routed,
		OTP:     svc,
		Queue:   queue,
		Resumes: resumes,
	})
	return &testEnv{store: store, queue: queue, handler: h}
}

// employerToken signs a session token the way signin does.
func employerToken(t *testing.T, employerID int64) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"employer_id": employerID,
		"email":       "hr@example.com",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d got %d body=%s", want, w.Code, w.Body.String())
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Detail string `json:"detail"`
	}
	decode(t, w, &e)
	return e.Detail
}

// seedJob stores an open job of employer with the given form keys selected.
func seedJob(t *testing.T, s *mock.Store, employerID int64, keys ...models.JobFormKeyConstraint) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateJob(ctx, &models.Job{EmployerID: employerID, Title: "Backend Engineer", Status: models.JobOpen})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	for i := range keys {
		keys[i].JobID = id
	}
	if err := s.ReplaceConstraints(ctx, id, keys); err != nil {
		t.Fatalf("replace constraints: %v", err)
	}
	return id
}

func seedFormKey(t *testing.T, s *mock.Store, fk models.FormKey) int64 {
	t.Helper()
	id, err := s.CreateFormKey(context.Background(), &fk)
	if err != nil {
		t.Fatalf("create form key: %v", err)
	}
	return id
}
