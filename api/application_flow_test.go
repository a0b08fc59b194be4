package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/garnizeh/recruit/api"
	"github.com/garnizeh/recruit/internal/notify"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository/mock"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

// verify runs send-otp and verify-otp for email and returns the token.
func (e *testEnv) verify(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, call{method: http.MethodPost, path: "/v1/auth/send-otp", body: map[string]string{"email": email}})
	expectStatus(t, w, http.StatusOK)
	w = e.do(t, call{method: http.MethodPost, path: "/v1/auth/verify-otp", body: map[string]string{"email": email, "code": e.queue.lastCode(t, email)}})
	expectStatus(t, w, http.StatusOK)
	var v struct {
		VerificationToken string `json:"verification_token"`
	}
	decode(t, w, &v)
	return v.VerificationToken
}

func (e *testEnv) submitCandidate(t *testing.T, token string, data map[string]string, resume []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	b, _ := json.Marshal(data)
	if err := mw.WriteField("data", string(b)); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if resume != nil {
		fw, err := mw.CreateFormFile("resume", "cv.pdf")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(resume); err != nil {
			t.Fatalf("write resume: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/candidates", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set(api.HeaderVerificationToken, token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func responses(kv map[int64]any) map[string]any {
	out := make(map[string]any, len(kv))
	for k, v := range kv {
		out[strconv.FormatInt(k, 10)] = v
	}
	return out
}

func TestApplicationFlow(t *testing.T) {
	env := newTestEnv(t)
	const email = "ana@example.com"
	years := seedFormKey(t, env.store, models.FormKey{EmployerID: 1, Name: "Years", FieldType: models.FieldNumber, Required: true})
	stack := seedFormKey(t, env.store, models.FormKey{EmployerID: 1, Name: "Stack", FieldType: models.FieldSelect, EnumValues: []string{"Go", "Rust"}})
	unused := seedFormKey(t, env.store, models.FormKey{EmployerID: 1, Name: "Unused", FieldType: models.FieldText})
	jobID := seedJob(t, env.store, 1,
		models.JobFormKeyConstraint{FormKeyID: years, Constraints: models.Constraints{"min_value": 3.0, "max_value": 10.0}},
		models.JobFormKeyConstraint{FormKeyID: stack, Constraints: models.Constraints{"required_options": []any{"Go"}}},
	)

	token := env.verify(t, email)
	person := map[string]string{"full_name": "Ana Lima", "email": "Ana@Example.com"}

	t.Run("CandidateWithoutToken", func(t *testing.T) {
		w := env.submitCandidate(t, "", person, samplePDF)
		expectStatus(t, w, http.StatusForbidden)
	})
	t.Run("CandidateWithoutResume", func(t *testing.T) {
		w := env.submitCandidate(t, token, person, nil)
		expectStatus(t, w, http.StatusBadRequest)
		if got := detail(t, w); got != "Resume is required" {
			t.Fatalf("unexpected detail %q", got)
		}
	})
	t.Run("CandidateWrongFileType", func(t *testing.T) {
		w := env.submitCandidate(t, token, person, []byte("just some plain text"))
		expectStatus(t, w, http.StatusBadRequest)
	})

	w := env.submitCandidate(t, token, person, samplePDF)
	expectStatus(t, w, http.StatusCreated)
	var cand struct {
		ID        int64  `json:"id"`
		Email     string `json:"email"`
		HasResume bool   `json:"has_resume"`
	}
	decode(t, w, &cand)
	if cand.Email != email || !cand.HasResume {
		t.Fatalf("unexpected candidate: %+v", cand)
	}

	// a returning candidate may keep the résumé on file
	w = env.submitCandidate(t, token, map[string]string{"full_name": "Ana L. Lima", "email": email}, nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, call{method: http.MethodGet, path: "/v1/candidates/lookup?email=ANA@example.com"})
	expectStatus(t, w, http.StatusOK)
	var lookup struct {
		Exists    bool `json:"exists"`
		HasResume bool `json:"has_resume"`
	}
	decode(t, w, &lookup)
	if !lookup.Exists || !lookup.HasResume {
		t.Fatalf("unexpected lookup: %+v", lookup)
	}

	apply := func(token string, body map[string]any) *httptest.ResponseRecorder {
		var headers map[string]string
		if token != "" {
			headers = map[string]string{api.HeaderVerificationToken: token}
		}
		return env.do(t, call{method: http.MethodPost, path: "/v1/applications", body: body, headers: headers})
	}
	valid := map[string]any{
		"job_id":       jobID,
		"candidate_id": cand.ID,
		"responses":    responses(map[int64]any{years: 12, stack: "Go", unused: "ignored"}),
	}

	w = apply("", valid)
	expectStatus(t, w, http.StatusForbidden)

	other := env.verify(t, "bob@example.com")
	w = apply(other, valid)
	expectStatus(t, w, http.StatusForbidden)

	w = apply(token, map[string]any{"job_id": jobID, "candidate_id": cand.ID, "responses": responses(map[int64]any{stack: "Go"})})
	expectStatus(t, w, http.StatusBadRequest)
	if got := detail(t, w); got != "Years is required" {
		t.Fatalf("unexpected detail %q", got)
	}

	w = apply(token, valid)
	expectStatus(t, w, http.StatusBadRequest)
	if got := detail(t, w); got != "Years must be at most 10" {
		t.Fatalf("unexpected detail %q", got)
	}

	valid["responses"] = responses(map[int64]any{years: 4, stack: "Go", unused: "ignored"})
	w = apply(token, valid)
	expectStatus(t, w, http.StatusCreated)
	var res struct {
		ApplicationID        int64   `json:"application_id"`
		MatchID              int64   `json:"match_id"`
		Score                float64 `json:"score"`
		SatisfiedConstraints int     `json:"satisfied_constraints"`
		TotalConstraints     int     `json:"total_constraints"`
	}
	decode(t, w, &res)
	if res.SatisfiedConstraints != 3 || res.TotalConstraints != 3 || res.Score != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	app := env.store.Apps[res.ApplicationID]
	if app == nil {
		t.Fatalf("application %d not stored", res.ApplicationID)
	}
	if _, ok := app.Responses[unused]; ok {
		t.Fatalf("answer to a key outside the form was stored")
	}
	if m := env.store.Matches[res.MatchID]; m == nil || m.Status != models.MatchPending {
		t.Fatalf("expected a pending match, got %+v", m)
	}

	notes := env.queue.ofType(notify.JobApplicationNotify)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification job got %d", len(notes))
	}
	var p notify.ApplicationPayload
	if err := json.Unmarshal(notes[0].payload, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.CandidateEmail != email || p.JobTitle != "Backend Engineer" || p.MatchID != res.MatchID {
		t.Fatalf("unexpected payload: %+v", p)
	}

	w = apply(token, valid)
	expectStatus(t, w, http.StatusConflict)
	if got := detail(t, w); got != "You have already applied to this job" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestApplicationToClosedJob(t *testing.T) {
	env := newTestEnv(t)
	const email = "carl@example.com"
	jobID := seedJob(t, env.store, 1)
	env.store.Jobs[jobID].Status = models.JobClosed

	token := env.verify(t, email)
	w := env.submitCandidate(t, token, map[string]string{"full_name": "Carl", "email": email}, samplePDF)
	expectStatus(t, w, http.StatusCreated)
	var cand struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &cand)

	w = env.do(t, call{
		method:  http.MethodPost,
		path:    "/v1/applications",
		body:    map[string]any{"job_id": jobID, "candidate_id": cand.ID},
		headers: map[string]string{api.HeaderVerificationToken: token},
	})
	expectStatus(t, w, http.StatusBadRequest)
	if got := detail(t, w); got != "This job is no longer accepting applications" {
		t.Fatalf("unexpected detail %q", got)
	}

	w = env.do(t, call{
		method:  http.MethodPost,
		path:    "/v1/applications",
		body:    map[string]any{"job_id": jobID, "candidate_id": 999},
		headers: map[string]string{api.HeaderVerificationToken: token},
	})
	expectStatus(t, w, http.StatusNotFound)
}

// flakyStore fails the first application write and can hide earlier
// applications from the pre-check, as a concurrent request would.
type flakyStore struct {
	*mock.Store
	failWrites int
	hidePrior  bool
}

func (s *flakyStore) CreateApplicationWithMatch(ctx context.Context, a *models.Application, m *models.Match) (int64, int64, error) {
	if s.failWrites > 0 {
		s.failWrites--
		return 0, 0, errors.New("disk full")
	}
	return s.Store.CreateApplicationWithMatch(ctx, a, m)
}

func (s *flakyStore) GetApplicationByJobAndCandidate(ctx context.Context, jobID, candidateID int64) (*models.Application, error) {
	if s.hidePrior {
		return nil, nil
	}
	return s.Store.GetApplicationByJobAndCandidate(ctx, jobID, candidateID)
}

// applyOnce verifies email, registers the candidate and returns a function
// posting an application to jobID.
func (e *testEnv) applyOnce(t *testing.T, email string, jobID int64) func() *httptest.ResponseRecorder {
	t.Helper()
	token := e.verify(t, email)
	w := e.submitCandidate(t, token, map[string]string{"full_name": "Dana", "email": email}, samplePDF)
	expectStatus(t, w, http.StatusCreated)
	var cand struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &cand)
	return func() *httptest.ResponseRecorder {
		return e.do(t, call{
			method:  http.MethodPost,
			path:    "/v1/applications",
			body:    map[string]any{"job_id": jobID, "candidate_id": cand.ID},
			headers: map[string]string{api.HeaderVerificationToken: token},
		})
	}
}

func TestApplicationWriteFailureCanBeRetried(t *testing.T) {
	store := mock.NewStore()
	flaky := &flakyStore{Store: store, failWrites: 1}
	env := newTestEnvFor(t, store, flaky)
	jobID := seedJob(t, store, 1)
	apply := env.applyOnce(t, "dana@example.com", jobID)

	expectStatus(t, apply(), http.StatusInternalServerError)
	if len(store.Apps) != 0 || len(store.Matches) != 0 {
		t.Fatalf("failed write left %d applications and %d matches", len(store.Apps), len(store.Matches))
	}

	expectStatus(t, apply(), http.StatusCreated)
	matches, err := store.ListMatchesByJob(context.Background(), jobID)
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected 1 match after retry, got %d (%v)", len(matches), err)
	}
}

func TestConcurrentDuplicateApplicationConflicts(t *testing.T) {
	store := mock.NewStore()
	env := newTestEnvFor(t, store, &flakyStore{Store: store, hidePrior: true})
	jobID := seedJob(t, store, 1)
	apply := env.applyOnce(t, "eli@example.com", jobID)

	expectStatus(t, apply(), http.StatusCreated)
	w := apply()
	expectStatus(t, w, http.StatusConflict)
	if got := detail(t, w); got != "You have already applied to this job" {
		t.Fatalf("unexpected detail %q", got)
	}
	if len(store.Apps) != 1 || len(store.Matches) != 1 {
		t.Fatalf("expected one application and one match, got %d and %d", len(store.Apps), len(store.Matches))
	}
}
