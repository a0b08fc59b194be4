package models

import (
	"encoding/json"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

// FieldType is the input kind of a FormKey.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldLink     FieldType = "link"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// FieldTypes lists every supported field type in display order.
var FieldTypes = []FieldType{FieldText, FieldTextarea, FieldNumber, FieldDate, FieldLink, FieldSelect, FieldCheckbox}

type Employer struct {
	ID           int64  `json:"id" db:"id"`
	CompanyName  string `json:"company_name" db:"company_name" validate:"required"`
	Email        string `json:"email" db:"email" validate:"required,email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Created      int64  `json:"created" db:"created"`
}

// FormKey is a company-defined custom application-form field.
type FormKey struct {
	ID         int64     `json:"id" db:"id"`
	EmployerID int64     `json:"employer_id" db:"employer_id"`
	Name       string    `json:"name" db:"name"`
	FieldType  FieldType `json:"field_type" db:"field_type"`
	Required   bool      `json:"required" db:"required"`
	EnumValues []string  `json:"enum_values" db:"enum_values"`
	Created    int64     `json:"created" db:"created"`
	Updated    int64     `json:"updated" db:"updated"`
}

// Constraints maps a constraint name (min_value, pattern, ...) to its value.
type Constraints map[string]any

// JobFormKeyConstraint is the constraint set of one form key selected by a job.
type JobFormKeyConstraint struct {
	ID          int64       `json:"id" db:"id"`
	JobID       int64       `json:"job_id" db:"job_id"`
	FormKeyID   int64       `json:"form_key_id" db:"form_key_id"`
	Constraints Constraints `json:"constraints" db:"constraints"`
}

// ConstraintInput is one entry of a bulk set_for_job request.
type ConstraintInput struct {
	FormKeyID   int64       `json:"form_key_id"`
	Constraints Constraints `json:"constraints"`
}

type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
)

type Job struct {
	ID          int64     `json:"id" db:"id"`
	EmployerID  int64     `json:"employer_id" db:"employer_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Location    string    `json:"location,omitempty" db:"location"`
	Status      JobStatus `json:"status" db:"status"`
	Created     int64     `json:"created" db:"created"`
	Updated     int64     `json:"updated" db:"updated"`
}

type Candidate struct {
	ID         int64  `json:"id" db:"id"`
	FullName   string `json:"full_name" db:"full_name"`
	Email      string `json:"email" db:"email"`
	Phone      string `json:"phone,omitempty" db:"phone"`
	ResumePath string `json:"-" db:"resume_path"`
	ResumeMIME string `json:"resume_mime,omitempty" db:"resume_mime"`
	ResumeSize int64  `json:"resume_size,omitempty" db:"resume_size"`
	Created    int64  `json:"created" db:"created"`
	Updated    int64  `json:"updated" db:"updated"`
}

// HasResume reports whether a résumé is on file for the candidate.
func (c *Candidate) HasResume() bool { return c != nil && c.ResumePath != "" }

// Responses maps a form key id to the submitted value.
type Responses map[int64]any

type Application struct {
	ID          int64     `json:"id" db:"id"`
	JobID       int64     `json:"job_id" db:"job_id"`
	CandidateID int64     `json:"candidate_id" db:"candidate_id"`
	Responses   Responses `json:"responses" db:"responses"`
	Created     int64     `json:"created" db:"created"`
}

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchContacted MatchStatus = "contacted"
	MatchAccepted  MatchStatus = "accepted"
	MatchRejected  MatchStatus = "rejected"
)

// Match is an externally scored candidate/job pairing.
type Match struct {
	ID                   int64       `json:"id" db:"id"`
	JobID                int64       `json:"job_id" db:"job_id"`
	CandidateID          int64       `json:"candidate_id" db:"candidate_id"`
	CandidateName        string      `json:"candidate_name" db:"candidate_name"`
	CandidateEmail       string      `json:"candidate_email" db:"candidate_email"`
	Score                float64     `json:"score" db:"score"`
	SatisfiedConstraints int         `json:"satisfied_constraints" db:"satisfied_constraints"`
	TotalConstraints     int         `json:"total_constraints" db:"total_constraints"`
	Status               MatchStatus `json:"status" db:"status"`
	Created              int64       `json:"created" db:"created"`
	Updated              int64       `json:"updated" db:"updated"`
}

// OTPCode is an outstanding email verification code. Only the hash is kept.
type OTPCode struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

type ConstraintSchema struct {
	ID         int64     `json:"id" db:"id"`
	FieldType  FieldType `json:"field_type" db:"field_type"`
	SchemaJSON string    `json:"schema_json" db:"schema_json"`
	Updated    int64     `json:"updated" db:"updated"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
