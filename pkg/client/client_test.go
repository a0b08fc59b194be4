package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/recruit/api"
	"github.com/garnizeh/recruit/internal/config"
	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/match"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/internal/storage"
	"github.com/garnizeh/recruit/pkg/client"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository/mock"
)

const secret = "client-test-secret"

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

// codes keeps the last code delivered per email.
type codes struct {
	mu   sync.Mutex
	last map[string]string
}

func (c *codes) Enqueue(ctx context.Context, typ string, payload any, priority, maxAttempts int) (int64, error) {
	if p, ok := payload.(otp.DeliverPayload); ok {
		c.mu.Lock()
		c.last[p.Email] = p.Code
		c.mu.Unlock()
	}
	return 1, nil
}

func (c *codes) get(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[email]
}

func newServer(t *testing.T) (*httptest.Server, *codes) {
	t.Helper()
	store := mock.NewStore()
	queue := &codes{last: map[string]string{}}
	resumes, err := storage.NewLocal(t.TempDir(), forms.ResumePolicy)
	require.NoError(t, err)
	cfg := &config.Config{
		JWTSecret:     secret,
		TokenDuration: time.Hour,
		Forms:         config.FormsConfig{EnforceConstraints: true, EditorVariant: "basic"},
	}
	h := api.SetupRoutes(cfg, "test", "now", api.Deps{
		Store:   store,
		OTP:     otp.NewService(store, queue, secret, time.Minute, time.Hour, nil),
		Queue:   queue,
		Resumes: resumes,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, queue
}

func newClient(t *testing.T, url string) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.BaseURL = url
	c := client.New(cfg, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEndToEnd(t *testing.T) {
	srv, queue := newServer(t)
	ctx := context.Background()
	employer := newClient(t, srv.URL)

	require.NoError(t, employer.Signup(ctx, "Acme", "hr@acme.io", "longenough"))
	require.True(t, employer.Session().Active())

	years, err := employer.CreateFormKey(ctx, forms.FormKeyDef{Name: "Years", FieldType: "number", Required: true})
	require.NoError(t, err)
	remote, err := employer.CreateFormKey(ctx, forms.FormKeyDef{Name: "Remote", FieldType: "checkbox"})
	require.NoError(t, err)

	job, err := employer.CreateJob(ctx, client.JobInput{
		Title: "Go Engineer",
		FormKeys: []models.ConstraintInput{
			{FormKeyID: years.ID, Constraints: models.Constraints{"min_value": 2}},
			{FormKeyID: remote.ID, Constraints: models.Constraints{"expected_state": true}},
		},
	})
	require.NoError(t, err)
	require.Len(t, job.FormKeys, 2)

	cons, err := employer.Constraints(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(2), cons[years.ID]["min_value"])

	// candidate side
	const email = "dev@example.com"
	candidate := newClient(t, srv.URL)
	page, err := candidate.LoadApplyPage(ctx, job.ID, email)
	require.NoError(t, err)
	assert.Equal(t, "Go Engineer", page.Form.Job.Title)
	assert.False(t, page.Lookup.Exists)
	require.Len(t, page.Form.Controls, 2)

	flow := otp.NewFlow(candidate, otp.WithWindow(time.Minute))
	defer flow.Close()
	flow.SetEmail(email)
	require.NoError(t, flow.RequestCode(ctx))
	assert.Equal(t, otp.CodeSent, flow.State())

	// the server refuses a second code while one is outstanding
	err = candidate.SendCode(ctx, email)
	assert.ErrorIs(t, err, otp.ErrCodeOutstanding)

	wrong := "000000"
	if queue.get(email) == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, flow.Verify(ctx, wrong), otp.ErrCodeMismatch)
	require.NoError(t, flow.Verify(ctx, queue.get(email)))
	require.True(t, flow.Verified())

	cand, err := candidate.SubmitCandidate(ctx, flow.Token(), client.CandidateInput{FullName: "Dev", Email: email}, "cv.pdf", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	assert.True(t, cand.HasResume)

	keys, formCons := page.Form.Keys()
	v := forms.NewValidator(forms.ResumePolicy, page.Form.Settings.EnforceConstraints)
	answers := models.Responses{years.ID: 1, remote.ID: true}
	assert.Error(t, v.ValidateResponses(keys, formCons, answers))
	answers[years.ID] = 5
	require.NoError(t, v.ValidateResponses(keys, formCons, answers))

	res, err := candidate.Apply(ctx, flow.Token(), job.ID, cand.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SatisfiedConstraints)
	assert.Equal(t, float64(1), res.Score)

	_, err = candidate.Apply(ctx, flow.Token(), job.ID, cand.ID, answers)
	assert.Equal(t, http.StatusConflict, client.Status(err))

	// reviewer side
	list, err := employer.ListMatches(ctx, job.ID, match.Query{Threshold: 80})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, email, list[0].CandidateEmail)

	board := match.NewBoard(employer, list)
	require.NoError(t, board.SetStatus(ctx, res.MatchID, models.MatchAccepted))
	require.NoError(t, employer.UpdateMatchScore(ctx, res.MatchID, 0.5))
	err = employer.UpdateMatchStatus(ctx, res.MatchID, models.MatchPending)
	assert.ErrorIs(t, err, match.ErrInvalidTransition)

	list, err = employer.ListMatches(ctx, job.ID, match.Query{Threshold: 80})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, employer.Signout(ctx))
	assert.False(t, employer.Session().Active())
	_, err = employer.ListJobs(ctx)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	srv, _ := newServer(t)
	session := &client.Session{}
	session.Set("stale-token")
	cfg := client.DefaultConfig()
	cfg.BaseURL = srv.URL
	c := client.New(cfg, session)
	defer c.Close()

	_, err := c.ListFormKeys(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, client.Status(err))
	assert.False(t, session.Active())
}

func TestClosedJobIsNotFound(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	c := newClient(t, srv.URL)
	require.NoError(t, c.Signup(ctx, "Acme", "hr@acme.io", "longenough"))
	job, err := c.CreateJob(ctx, client.JobInput{Title: "Closed soon"})
	require.NoError(t, err)
	require.NoError(t, c.SetJobStatus(ctx, job.ID, models.JobClosed))

	_, err = c.PublicForm(ctx, job.ID)
	assert.Equal(t, http.StatusNotFound, client.Status(err))
}

func TestCircuitOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "boom"})
	}))
	defer srv.Close()

	cfg := client.Config{BaseURL: srv.URL, Timeout: time.Second, CircuitFailureThreshold: 2, CircuitReset: time.Minute}
	c := client.New(cfg, nil)
	defer c.Close()
	ctx := context.Background()

	for range 2 {
		_, err := c.PublicForm(ctx, 1)
		assert.Equal(t, http.StatusInternalServerError, client.Status(err))
	}
	_, err := c.PublicForm(ctx, 1)
	assert.ErrorIs(t, err, client.ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
