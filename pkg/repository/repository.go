package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/recruit/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Lookups return (nil, nil) when the row does not exist.

// ErrDuplicate is returned when a write would break a uniqueness rule.
var ErrDuplicate = errors.New("duplicate")

type EmployerRepo interface {
	CreateEmployer(ctx context.Context, e *models.Employer) (int64, error)
	GetEmployerByEmail(ctx context.Context, email string) (*models.Employer, error)
}

type FormKeyRepo interface {
	ListFormKeys(ctx context.Context, employerID int64) ([]models.FormKey, error)
	GetFormKey(ctx context.Context, id int64) (*models.FormKey, error)
	CreateFormKey(ctx context.Context, fk *models.FormKey) (int64, error)
	UpdateFormKey(ctx context.Context, fk *models.FormKey) error
	DeleteFormKey(ctx context.Context, id int64) error
}

type ConstraintRepo interface {
	ListConstraintsByJob(ctx context.Context, jobID int64) ([]models.JobFormKeyConstraint, error)
	// ListConstraintsByFormKey returns every row, across jobs, that references the form key.
	ListConstraintsByFormKey(ctx context.Context, formKeyID int64) ([]models.JobFormKeyConstraint, error)
	UpdateConstraint(ctx context.Context, id int64, c models.Constraints) error
	// ReplaceConstraints swaps every constraint row of a job for the given set.
	ReplaceConstraints(ctx context.Context, jobID int64, set []models.JobFormKeyConstraint) error
}

type JobRepo interface {
	CreateJob(ctx context.Context, j *models.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobs(ctx context.Context, employerID int64) ([]models.Job, error)
	UpdateJob(ctx context.Context, j *models.Job) error
	DeleteJob(ctx context.Context, id int64) error
}

type CandidateRepo interface {
	GetCandidate(ctx context.Context, id int64) (*models.Candidate, error)
	GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error)
	// UpsertCandidate creates the candidate or updates the row with the same email.
	UpsertCandidate(ctx context.Context, c *models.Candidate) (int64, error)
}

type ApplicationRepo interface {
	// CreateApplicationWithMatch stores the application and its match record
	// together; neither is written when one fails. A second application of the
	// same candidate to the same job fails with ErrDuplicate.
	CreateApplicationWithMatch(ctx context.Context, a *models.Application, m *models.Match) (appID, matchID int64, err error)
	GetApplicationByJobAndCandidate(ctx context.Context, jobID, candidateID int64) (*models.Application, error)
}

type MatchRepo interface {
	CreateMatch(ctx context.Context, m *models.Match) (int64, error)
	GetMatch(ctx context.Context, id int64) (*models.Match, error)
	ListMatchesByJob(ctx context.Context, jobID int64) ([]models.Match, error)
	UpdateMatchStatus(ctx context.Context, id int64, status models.MatchStatus) error
	UpdateMatchScore(ctx context.Context, id int64, score float64) error
}

type OTPRepo interface {
	SaveCode(ctx context.Context, c *models.OTPCode) error
	GetCode(ctx context.Context, email string) (*models.OTPCode, error)
	IncrementAttempts(ctx context.Context, email string) error
	DeleteCode(ctx context.Context, email string) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type SchemaRepo interface {
	UpsertConstraintSchema(ctx context.Context, fieldType models.FieldType, schemaJSON string) error
	ListConstraintSchemas(ctx context.Context) ([]models.ConstraintSchema, error)
}

type BackgroundJobRepo interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error)
	FetchNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
}
