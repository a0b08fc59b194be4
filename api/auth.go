package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

type AuthHandler struct {
	employerRepo  repository.EmployerRepo
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(er repository.EmployerRepo, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{employerRepo: er, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signupRequest struct {
	CompanyName string `json:"company_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	ctx := r.Context()

	existing, err := h.employerRepo.GetEmployerByEmail(ctx, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error hashing password")
		return
	}

	employer := models.Employer{
		CompanyName:  strings.TrimSpace(req.CompanyName),
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	id, err := h.employerRepo.CreateEmployer(ctx, &employer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating account")
		return
	}

	h.issue(w, id, req.Email)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	employer, err := h.employerRepo.GetEmployerByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || employer == nil {
		writeError(w, http.StatusUnauthorized, "Credentials not found")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(employer.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Credentials not found")
		return
	}

	h.issue(w, employer.ID, employer.Email)
}

func (h *AuthHandler) issue(w http.ResponseWriter, employerID int64, email string) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"employer_id": employerID,
		"email":       email,
		"exp":         time.Now().Add(h.tokenDuration).Unix(),
	})
	tokenStr, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error signing token")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: tokenStr})
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// OTPHandler serves the public email verification gate.
type OTPHandler struct {
	svc *otp.Service
}

func NewOTPHandler(svc *otp.Service) *OTPHandler {
	return &OTPHandler{svc: svc}
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type sendOTPResponse struct {
	Detail    string `json:"detail"`
	ExpiresIn int    `json:"expires_in"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type verifyOTPResponse struct {
	VerificationToken string `json:"verification_token"`
}

func (h *OTPHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.svc.Send(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendOTPResponse{
		Detail:    "Verification code sent",
		ExpiresIn: int(h.svc.Window() / time.Second),
	})
}

func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	token, err := h.svc.Verify(r.Context(), req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{VerificationToken: token})
}

// HeaderVerificationToken carries the token returned by verify-otp.
const HeaderVerificationToken = "X-Verification-Token"

// requireVerified checks the request's verification token against email.
func requireVerified(svc *otp.Service, r *http.Request, email string) error {
	tok := strings.TrimSpace(r.Header.Get(HeaderVerificationToken))
	if tok == "" {
		return otp.ErrInvalidToken
	}
	if err := svc.VerifyToken(tok, email); err != nil {
		return err
	}
	return nil
}

var errClosedJob = &forms.ValidationError{Field: "job_id", Message: "This job is no longer accepting applications"}

