package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/match"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/pkg/models"
)

// HeaderVerificationToken carries the candidate verification token.
const HeaderVerificationToken = "X-Verification-Token"

func id(n int64) string { return strconv.FormatInt(n, 10) }

// auth

type tokenResponse struct {
	Token string `json:"token"`
}

// Signup registers an employer and starts a session.
func (c *Client) Signup(ctx context.Context, company, email, password string) error {
	var out tokenResponse
	body := map[string]string{"company_name": company, "email": email, "password": password}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/auth/signup", body: body, out: &out}); err != nil {
		return err
	}
	c.session.Set(out.Token)
	return nil
}

// Signin starts a session.
func (c *Client) Signin(ctx context.Context, email, password string) error {
	var out tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/auth/signin", body: body, out: &out}); err != nil {
		return err
	}
	c.session.Set(out.Token)
	return nil
}

// Signout ends the session locally whatever the server answers.
func (c *Client) Signout(ctx context.Context) error {
	defer c.session.Clear()
	return c.do(ctx, request{method: http.MethodPost, path: "/v1/auth/signout", auth: true})
}

// form keys

func (c *Client) ListFormKeys(ctx context.Context) ([]models.FormKey, error) {
	var out []models.FormKey
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/form_keys", out: &out, auth: true})
	return out, err
}

func (c *Client) CreateFormKey(ctx context.Context, def forms.FormKeyDef) (*models.FormKey, error) {
	var out models.FormKey
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/form_keys", body: def, out: &out, auth: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateFormKey(ctx context.Context, formKeyID int64, def forms.FormKeyDef) (*models.FormKey, error) {
	var out models.FormKey
	if err := c.do(ctx, request{method: http.MethodPatch, path: "/v1/form_keys/" + id(formKeyID), body: def, out: &out, auth: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFormKey(ctx context.Context, formKeyID int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/v1/form_keys/" + id(formKeyID), auth: true})
}

// jobs and constraints

type JobInput struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description,omitempty"`
	Location    string                   `json:"location,omitempty"`
	Status      string                   `json:"status,omitempty"`
	FormKeys    []models.ConstraintInput `json:"form_keys"`
}

type ConstraintRow struct {
	FormKeyID   int64              `json:"form_key_id"`
	Constraints models.Constraints `json:"constraints"`
}

// Job is a job posting together with its constraint rows.
type Job struct {
	models.Job
	FormKeys []ConstraintRow `json:"form_keys"`
}

func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	var out []models.Job
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/jobs", out: &out, auth: true})
	return out, err
}

func (c *Client) CreateJob(ctx context.Context, in JobInput) (*Job, error) {
	var out Job
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/jobs", body: in, out: &out, auth: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	var out Job
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/jobs/" + id(jobID), out: &out, auth: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetJobStatus opens or closes a job.
func (c *Client) SetJobStatus(ctx context.Context, jobID int64, status models.JobStatus) error {
	body := map[string]string{"status": string(status)}
	return c.do(ctx, request{method: http.MethodPatch, path: "/v1/jobs/" + id(jobID), body: body, auth: true})
}

func (c *Client) DeleteJob(ctx context.Context, jobID int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/v1/jobs/" + id(jobID), auth: true})
}

// Constraints returns the job's constraints keyed by form key id.
func (c *Client) Constraints(ctx context.Context, jobID int64) (map[int64]models.Constraints, error) {
	var out map[int64]models.Constraints
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/job_form_key_constraints/by-job/" + id(jobID), out: &out, auth: true})
	return out, err
}

// SetConstraints replaces the job's whole constraint set.
func (c *Client) SetConstraints(ctx context.Context, jobID int64, in []models.ConstraintInput) ([]ConstraintRow, error) {
	if in == nil {
		in = []models.ConstraintInput{}
	}
	var out []ConstraintRow
	err := c.do(ctx, request{method: http.MethodPut, path: "/v1/job_form_key_constraints/by-job/" + id(jobID), body: in, out: &out, auth: true})
	return out, err
}

// public application page

type FormSettings struct {
	EnforceConstraints bool  `json:"enforce_constraints"`
	PDFOnly            bool  `json:"pdf_only"`
	MaxResumeBytes     int64 `json:"max_resume_bytes"`
}

type FormField struct {
	models.FormKey
	Constraints models.Constraints `json:"constraints"`
}

type PublicForm struct {
	Job struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Location    string `json:"location,omitempty"`
	} `json:"job"`
	FormKeys []FormField     `json:"form_keys"`
	Controls []forms.Control `json:"controls"`
	Settings FormSettings    `json:"settings"`
}

// Keys splits the form into the shape the validator works on.
func (f *PublicForm) Keys() ([]models.FormKey, map[int64]models.Constraints) {
	keys := make([]models.FormKey, 0, len(f.FormKeys))
	cons := make(map[int64]models.Constraints, len(f.FormKeys))
	for _, ff := range f.FormKeys {
		keys = append(keys, ff.FormKey)
		cons[ff.ID] = ff.Constraints
	}
	return keys, cons
}

func (c *Client) PublicForm(ctx context.Context, jobID int64) (*PublicForm, error) {
	var out PublicForm
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/jobs/public/form-data/" + id(jobID), out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

type Lookup struct {
	Exists    bool `json:"exists"`
	HasResume bool `json:"has_resume"`
}

func (c *Client) LookupCandidate(ctx context.Context, email string) (*Lookup, error) {
	var out Lookup
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/candidates/lookup", query: map[string]string{"email": email}, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyPage is everything the application page needs before the first
// keystroke.
type ApplyPage struct {
	Form   *PublicForm
	Lookup Lookup
}

// LoadApplyPage fetches the public form and, when email is set, the
// candidate lookup concurrently.
func (c *Client) LoadApplyPage(ctx context.Context, jobID int64, email string) (*ApplyPage, error) {
	page := &ApplyPage{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := c.PublicForm(ctx, jobID)
		if err != nil {
			return fmt.Errorf("load form: %w", err)
		}
		page.Form = f
		return nil
	})
	if email != "" {
		g.Go(func() error {
			l, err := c.LookupCandidate(ctx, email)
			if err != nil {
				return fmt.Errorf("lookup candidate: %w", err)
			}
			page.Lookup = *l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

// email verification

// SendCode asks the server to email a code. It implements otp.Sender.
func (c *Client) SendCode(ctx context.Context, email string) error {
	err := c.do(ctx, request{method: http.MethodPost, path: "/v1/auth/send-otp", body: map[string]string{"email": email}})
	return otpError(err)
}

// VerifyCode exchanges a code for a verification token. It implements
// otp.Sender.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (string, error) {
	var out struct {
		VerificationToken string `json:"verification_token"`
	}
	body := map[string]string{"email": email, "code": code}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/auth/verify-otp", body: body, out: &out}); err != nil {
		return "", otpError(err)
	}
	return out.VerificationToken, nil
}

// otpError maps verification answers onto the otp package errors so that an
// otp.Flow can drive its state machine from them.
func otpError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", otp.ErrCodeOutstanding, apiErr.Detail)
	case http.StatusGone:
		return fmt.Errorf("%w: %s", otp.ErrCodeExpired, apiErr.Detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", otp.ErrInvalidToken, apiErr.Detail)
	case http.StatusBadRequest:
		if apiErr.Detail == "Invalid verification code" {
			return fmt.Errorf("%w: %s", otp.ErrCodeMismatch, apiErr.Detail)
		}
	}
	return err
}

// candidates and applications

type CandidateInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

type Candidate struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	HasResume bool   `json:"has_resume"`
}

// SubmitCandidate upserts the candidate. resume may be nil for a returning
// candidate with a résumé on file.
func (c *Client) SubmitCandidate(ctx context.Context, token string, in CandidateInput, resumeName string, resume io.Reader) (*Candidate, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	if err := mw.WriteField("data", string(data)); err != nil {
		return nil, err
	}
	if resume != nil {
		fw, err := mw.CreateFormFile("resume", resumeName)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(fw, resume); err != nil {
			return nil, fmt.Errorf("read resume: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out Candidate
	headers := map[string]string{
		HeaderVerificationToken: token,
		"Content-Type":          mw.FormDataContentType(),
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/candidates", body: buf.Bytes(), out: &out, headers: headers}); err != nil {
		return nil, otpError(err)
	}
	return &out, nil
}

type ApplicationResult struct {
	ApplicationID        int64   `json:"application_id"`
	MatchID              int64   `json:"match_id"`
	Score                float64 `json:"score"`
	SatisfiedConstraints int     `json:"satisfied_constraints"`
	TotalConstraints     int     `json:"total_constraints"`
}

func (c *Client) Apply(ctx context.Context, token string, jobID, candidateID int64, responses models.Responses) (*ApplicationResult, error) {
	if responses == nil {
		responses = models.Responses{}
	}
	body := map[string]any{"job_id": jobID, "candidate_id": candidateID, "responses": responses}
	var out ApplicationResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/applications", body: body, out: &out, headers: map[string]string{HeaderVerificationToken: token}}); err != nil {
		return nil, otpError(err)
	}
	return &out, nil
}

// matches

// ListMatches fetches the job's matches with the query applied server-side.
func (c *Client) ListMatches(ctx context.Context, jobID int64, q match.Query) ([]models.Match, error) {
	params := map[string]string{}
	if q.Threshold > 0 {
		params["min_score"] = strconv.FormatFloat(q.Threshold, 'f', -1, 64)
	}
	if q.Status != "" {
		params["status"] = q.Status
	}
	if q.Search != "" {
		params["q"] = q.Search
	}
	if q.Sort != "" {
		params["sort"] = q.Sort
	}
	var out []models.Match
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/jobs/" + id(jobID) + "/matches", query: params, out: &out, auth: true})
	return out, err
}

// UpdateMatchStatus implements match.StatusWriter. A 409 answer is reported
// as match.ErrInvalidTransition.
func (c *Client) UpdateMatchStatus(ctx context.Context, matchID int64, status models.MatchStatus) error {
	err := c.do(ctx, request{method: http.MethodPatch, path: "/v1/matches/" + id(matchID), body: map[string]string{"status": string(status)}, auth: true})
	if Status(err) == http.StatusConflict {
		return fmt.Errorf("%w: %s", match.ErrInvalidTransition, err)
	}
	return err
}

func (c *Client) UpdateMatchScore(ctx context.Context, matchID int64, score float64) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/v1/matches/" + id(matchID) + "/score", body: map[string]float64{"score": score}, auth: true})
}
