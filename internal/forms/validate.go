package forms

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/garnizeh/recruit/pkg/models"
)

// MIME types accepted for résumés.
const (
	MIMEPDF  = "application/pdf"
	MIMEDoc  = "application/msword"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DefaultMaxResumeBytes caps résumé uploads.
const DefaultMaxResumeBytes int64 = 5 << 20

type FileInfo struct {
	Name string
	Size int64
	MIME string
}

// FilePolicy restricts the type and size of an uploaded file.
type FilePolicy struct {
	Allowed     []string
	MaxBytes    int64
	TypeMessage string
}

var (
	ResumePolicy = FilePolicy{
		Allowed:     []string{MIMEPDF, MIMEDoc, MIMEDocx},
		MaxBytes:    DefaultMaxResumeBytes,
		TypeMessage: "Resume must be a PDF or Word document",
	}
	PDFOnlyPolicy = FilePolicy{
		Allowed:     []string{MIMEPDF},
		MaxBytes:    DefaultMaxResumeBytes,
		TypeMessage: "Resume must be a PDF document",
	}
)

// NewFilePolicy returns the résumé policy for the given options. A zero
// maxBytes keeps the default cap.
func NewFilePolicy(pdfOnly bool, maxBytes int64) FilePolicy {
	p := ResumePolicy
	if pdfOnly {
		p = PDFOnlyPolicy
	}
	if maxBytes > 0 {
		p.MaxBytes = maxBytes
	}
	return p
}

// Check validates a file against the policy. MIME parameters are ignored.
func (p FilePolicy) Check(f FileInfo) error {
	if !mimetype.EqualsAny(f.MIME, p.Allowed...) {
		return invalid("resume", "%s", p.TypeMessage)
	}
	if p.MaxBytes > 0 && f.Size > p.MaxBytes {
		return invalid("resume", "Resume must be %s or smaller", formatSize(p.MaxBytes))
	}
	return nil
}

// SniffMIME detects the content type of r from its leading bytes.
func SniffMIME(r io.Reader) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detect mime: %w", err)
	}
	return m.String(), nil
}

func formatSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}

// Submission is everything the candidate provides on the application page.
type Submission struct {
	FullName        string
	Email           string
	EmailVerified   bool
	Resume          *FileInfo
	HasResumeOnFile bool
	FormKeys        []models.FormKey
	Constraints     map[int64]models.Constraints
	Responses       models.Responses
}

// Validator gates an application before it is sent or stored.
type Validator struct {
	Policy             FilePolicy
	EnforceConstraints bool
}

func NewValidator(policy FilePolicy, enforce bool) *Validator {
	return &Validator{Policy: policy, EnforceConstraints: enforce}
}

// ValidateSubmission runs every check in order and returns the first failure
// as a *ValidationError.
func (v *Validator) ValidateSubmission(s Submission) error {
	if err := checkRequired(s.FormKeys, s.Constraints, s.Responses); err != nil {
		return err
	}
	if strings.TrimSpace(s.FullName) == "" {
		return invalid("full_name", "Full name is required")
	}
	if strings.TrimSpace(s.Email) == "" {
		return invalid("email", "Email is required")
	}
	if !s.EmailVerified {
		return invalid("email", "Email verification is required")
	}
	if s.Resume == nil {
		if !s.HasResumeOnFile {
			return invalid("resume", "Resume is required")
		}
	} else if err := v.Policy.Check(*s.Resume); err != nil {
		return err
	}
	if v.EnforceConstraints {
		return checkConstraints(s.FormKeys, s.Constraints, s.Responses)
	}
	return nil
}

// ValidateResponses runs the form key checks only.
func (v *Validator) ValidateResponses(keys []models.FormKey, constraints map[int64]models.Constraints, responses models.Responses) error {
	if err := checkRequired(keys, constraints, responses); err != nil {
		return err
	}
	if v.EnforceConstraints {
		return checkConstraints(keys, constraints, responses)
	}
	return nil
}

// Present reports whether a response counts as given: nil, blank strings and
// empty lists are absent. Any boolean is present.
func Present(v any) bool {
	return !isEmpty(v)
}

func checkRequired(keys []models.FormKey, constraints map[int64]models.Constraints, responses models.Responses) error {
	for _, fk := range keys {
		if !fk.Required {
			continue
		}
		v, ok := responses[fk.ID]
		if !ok || !Present(v) {
			return invalid(fk.Name, "%s is required", fk.Name)
		}
		if fk.FieldType != models.FieldCheckbox {
			continue
		}
		if _, set := constraints[fk.ID][KeyExpectedState].(bool); !set {
			continue
		}
		k := kinds[fk.FieldType]
		b, err := k.coerce(fk, v)
		if err != nil {
			return err
		}
		if err := k.checkKey(fk, KeyExpectedState, constraints[fk.ID], b); err != nil {
			return err
		}
	}
	return nil
}

func checkConstraints(keys []models.FormKey, constraints map[int64]models.Constraints, responses models.Responses) error {
	for _, fk := range keys {
		v, ok := responses[fk.ID]
		if !ok || !Present(v) {
			continue
		}
		k, err := kindOf(fk)
		if err != nil {
			return err
		}
		cv, err := k.coerce(fk, v)
		if err != nil {
			return err
		}
		c := constraints[fk.ID]
		for _, key := range k.keys() {
			if _, set := c[key]; !set || isEmpty(c[key]) {
				continue
			}
			if err := k.checkKey(fk, key, c, cv); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate counts how many of the configured constraints the responses
// satisfy. Constraints on missing or malformed responses are unsatisfied.
func Evaluate(keys []models.FormKey, constraints map[int64]models.Constraints, responses models.Responses) (satisfied, total int) {
	for _, fk := range keys {
		c := constraints[fk.ID]
		n := Count(fk, c)
		if n == 0 {
			continue
		}
		total += n

		v, ok := responses[fk.ID]
		if !ok || !Present(v) {
			continue
		}
		k := kinds[fk.FieldType]
		cv, err := k.coerce(fk, v)
		if err != nil {
			continue
		}
		for _, key := range k.keys() {
			if _, set := c[key]; !set || isEmpty(c[key]) {
				continue
			}
			if k.checkKey(fk, key, c, cv) == nil {
				satisfied++
			}
		}
	}
	return satisfied, total
}
