package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/recruit/internal/config"
	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/internal/storage"
	"github.com/garnizeh/recruit/pkg/repository"
)

// Store is every repository the API reads or writes.
type Store interface {
	repository.EmployerRepo
	repository.FormKeyRepo
	repository.ConstraintRepo
	repository.JobRepo
	repository.CandidateRepo
	repository.ApplicationRepo
	repository.MatchRepo
}

// Deps are the collaborators the handlers are built from.
type Deps struct {
	Store   Store
	Schemas *forms.SchemaLoader
	OTP     *otp.Service
	Queue   otp.Enqueuer
	Resumes *storage.Local
}

// collection routes accept an optional trailing slash
const slash = "{slash:/?}"

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	variant, _ := forms.ParseVariant(cfg.Forms.EditorVariant)
	policy := forms.NewFilePolicy(cfg.Uploads.PDFOnly, cfg.Uploads.MaxBytes)
	// the server enforces constraints whatever the client-side setting says
	serverValidator := forms.NewValidator(policy, true)

	registry := forms.NewRegistry(deps.Store, deps.Store)
	constraints := forms.NewConstraintService(deps.Store, deps.Store, deps.Schemas)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(deps.Store, cfg.JWTSecret, cfg.TokenDuration)
	otpHandler := NewOTPHandler(deps.OTP)
	formKeyHandler := NewFormKeyHandler(registry)
	constraintHandler := NewConstraintHandler(constraints, deps.Store, deps.Store, variant)
	jobsHandler := NewJobsHandler(deps.Store, constraints, FormSettings{
		EnforceConstraints: cfg.Forms.EnforceConstraints,
		PDFOnly:            cfg.Uploads.PDFOnly,
		MaxResumeBytes:     policy.MaxBytes,
	})
	candidateHandler := NewCandidateHandler(deps.Store, deps.OTP, deps.Resumes, policy.MaxBytes)
	applicationHandler := NewApplicationHandler(deps.Store, constraints, deps.OTP, deps.Queue, serverValidator)
	matchHandler := NewMatchHandler(deps.Store)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")
	r.HandleFunc("/v1/auth/send-otp", otpHandler.SendOTP).Methods("POST")
	r.HandleFunc("/v1/auth/verify-otp", otpHandler.VerifyOTP).Methods("POST")
	r.HandleFunc("/v1/jobs/public/form-data/{job_id:[0-9]+}", jobsHandler.PublicFormData).Methods("GET")
	r.HandleFunc("/v1/candidates/lookup", candidateHandler.Lookup).Methods("GET")
	r.HandleFunc("/v1/candidates"+slash, candidateHandler.Create).Methods("POST")
	r.HandleFunc("/v1/applications"+slash, applicationHandler.Create).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")

	// Form keys
	apiV1.HandleFunc("/form_keys"+slash, formKeyHandler.List).Methods("GET")
	apiV1.HandleFunc("/form_keys"+slash, formKeyHandler.Create).Methods("POST")
	apiV1.HandleFunc("/form_keys/{id:[0-9]+}", formKeyHandler.Update).Methods("PATCH")
	apiV1.HandleFunc("/form_keys/{id:[0-9]+}", formKeyHandler.Delete).Methods("DELETE")

	// Constraints
	apiV1.HandleFunc("/job_form_key_constraints/by-job/{job_id:[0-9]+}", constraintHandler.GetByJob).Methods("GET")
	apiV1.HandleFunc("/job_form_key_constraints/by-job/{job_id:[0-9]+}", constraintHandler.SetByJob).Methods("PUT")
	apiV1.HandleFunc("/job_form_key_constraints/editor/{job_id:[0-9]+}", constraintHandler.Editor).Methods("GET")
	apiV1.HandleFunc("/job_form_key_constraints/editor/{job_id:[0-9]+}", constraintHandler.Edit).Methods("PATCH")

	// Jobs
	apiV1.HandleFunc("/jobs"+slash, jobsHandler.List).Methods("GET")
	apiV1.HandleFunc("/jobs"+slash, jobsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/jobs/{id:[0-9]+}", jobsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/jobs/{id:[0-9]+}", jobsHandler.Update).Methods("PATCH")
	apiV1.HandleFunc("/jobs/{id:[0-9]+}", jobsHandler.Delete).Methods("DELETE")

	// Matches
	apiV1.HandleFunc("/jobs/{job_id:[0-9]+}/matches", matchHandler.List).Methods("GET")
	apiV1.HandleFunc("/matches/{id:[0-9]+}", matchHandler.UpdateStatus).Methods("PATCH")
	apiV1.HandleFunc("/matches/{id:[0-9]+}/score", matchHandler.UpdateScore).Methods("PUT")

	return r
}
