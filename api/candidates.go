package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/internal/storage"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

// multipart overhead allowed on top of the résumé size cap
const formOverhead = 1 << 20

type CandidateHandler struct {
	candidates repository.CandidateRepo
	otp        *otp.Service
	resumes    *storage.Local
	maxBytes   int64
}

func NewCandidateHandler(candidates repository.CandidateRepo, svc *otp.Service, resumes *storage.Local, maxBytes int64) *CandidateHandler {
	if maxBytes <= 0 {
		maxBytes = forms.DefaultMaxResumeBytes
	}
	return &CandidateHandler{candidates: candidates, otp: svc, resumes: resumes, maxBytes: maxBytes}
}

type lookupResponse struct {
	Exists    bool `json:"exists"`
	HasResume bool `json:"has_resume"`
}

// Lookup tells the application page whether the email belongs to a
// returning applicant with a résumé on file.
func (h *CandidateHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	email := otp.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	c, err := h.candidates.GetCandidateByEmail(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Exists: c != nil, HasResume: c != nil && c.HasResume()})
}

type candidateData struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
}

type candidateResponse struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	HasResume bool   `json:"has_resume"`
}

// Create upserts the candidate from a multipart form with a JSON "data" part
// and an optional "resume" file. The caller must hold a verification token
// for the email.
func (h *CandidateHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Resume is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var data candidateData
	if err := json.Unmarshal([]byte(r.FormValue("data")), &data); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid candidate data")
		return
	}
	if err := validateStruct(&data); err != nil {
		writeServiceError(w, r, err)
		return
	}
	data.Email = otp.NormalizeEmail(data.Email)
	data.FullName = strings.TrimSpace(data.FullName)

	if err := requireVerified(h.otp, r, data.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	existing, err := h.candidates.GetCandidateByEmail(ctx, data.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	c := &models.Candidate{FullName: data.FullName, Email: data.Email, Phone: strings.TrimSpace(data.Phone)}
	file, header, err := r.FormFile("resume")
	switch {
	case err == nil:
		defer file.Close()
		stored, err := h.resumes.Save(ctx, header.Filename, file)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		c.ResumePath, c.ResumeMIME, c.ResumeSize = stored.Path, stored.MIME, stored.Size
	case errors.Is(err, http.ErrMissingFile):
		if existing == nil || !existing.HasResume() {
			writeError(w, http.StatusBadRequest, "Resume is required")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "Invalid resume upload")
		return
	}

	id, err := h.candidates.UpsertCandidate(ctx, c)
	if err != nil {
		if c.ResumePath != "" {
			_ = h.resumes.Remove(c.ResumePath)
		}
		writeServiceError(w, r, err)
		return
	}
	if c.ResumePath != "" && existing != nil && existing.ResumePath != "" && existing.ResumePath != c.ResumePath {
		if err := h.resumes.Remove(existing.ResumePath); err != nil {
			logger.Warn("remove replaced resume", slog.Int64("candidate_id", id), slog.Any("err", err))
		}
	}

	status := http.StatusCreated
	if existing != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, candidateResponse{
		ID:        id,
		FullName:  c.FullName,
		Email:     c.Email,
		Phone:     c.Phone,
		HasResume: c.ResumePath != "" || (existing != nil && existing.HasResume()),
	})
}
