package mock

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

// Store is an in-memory implementation of every repository interface, for
// tests. Set Err to make every call fail.
type Store struct {
	mu sync.Mutex

	Err error

	nextID      int64
	Employers   map[int64]*models.Employer
	FormKeys    map[int64]*models.FormKey
	Constraints map[int64][]models.JobFormKeyConstraint
	Jobs        map[int64]*models.Job
	Candidates  map[int64]*models.Candidate
	Apps        map[int64]*models.Application
	Matches     map[int64]*models.Match
	Codes       map[string]*models.OTPCode
	Schemas     map[models.FieldType]string
	Queue       []*models.BackgroundJob
	DeadLetter  []*models.BackgroundJob
}

func NewStore() *Store {
	return &Store{
		Employers:   map[int64]*models.Employer{},
		FormKeys:    map[int64]*models.FormKey{},
		Constraints: map[int64][]models.JobFormKeyConstraint{},
		Jobs:        map[int64]*models.Job{},
		Candidates:  map[int64]*models.Candidate{},
		Apps:        map[int64]*models.Application{},
		Matches:     map[int64]*models.Match{},
		Codes:       map[string]*models.OTPCode{},
		Schemas:     map[models.FieldType]string{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// employers

func (s *Store) CreateEmployer(ctx context.Context, e *models.Employer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	cp := *e
	cp.ID = s.id()
	s.Employers[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) GetEmployerByEmail(ctx context.Context, email string) (*models.Employer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, e := range s.Employers {
		if e.Email == email {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// form keys

func (s *Store) ListFormKeys(ctx context.Context, employerID int64) ([]models.FormKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.FormKey
	for _, id := range slices.Sorted(maps.Keys(s.FormKeys)) {
		if fk := s.FormKeys[id]; fk.EmployerID == employerID {
			out = append(out, *fk)
		}
	}
	return out, nil
}

func (s *Store) GetFormKey(ctx context.Context, id int64) (*models.FormKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	fk, ok := s.FormKeys[id]
	if !ok {
		return nil, nil
	}
	cp := *fk
	return &cp, nil
}

func (s *Store) CreateFormKey(ctx context.Context, fk *models.FormKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	cp := *fk
	cp.ID = s.id()
	s.FormKeys[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) UpdateFormKey(ctx context.Context, fk *models.FormKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cp := *fk
	s.FormKeys[fk.ID] = &cp
	return nil
}

func (s *Store) DeleteFormKey(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.FormKeys, id)
	for jobID, set := range s.Constraints {
		s.Constraints[jobID] = slices.DeleteFunc(set, func(c models.JobFormKeyConstraint) bool { return c.FormKeyID == id })
	}
	return nil
}

// constraints

func (s *Store) ListConstraintsByJob(ctx context.Context, jobID int64) ([]models.JobFormKeyConstraint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return slices.Clone(s.Constraints[jobID]), nil
}

func (s *Store) ReplaceConstraints(ctx context.Context, jobID int64, set []models.JobFormKeyConstraint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	rows := make([]models.JobFormKeyConstraint, 0, len(set))
	for _, c := range set {
		c.ID = s.id()
		c.JobID = jobID
		rows = append(rows, c)
	}
	s.Constraints[jobID] = rows
	return nil
}

func (s *Store) ListConstraintsByFormKey(ctx context.Context, formKeyID int64) ([]models.JobFormKeyConstraint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.JobFormKeyConstraint
	for _, jobID := range slices.Sorted(maps.Keys(s.Constraints)) {
		for _, c := range s.Constraints[jobID] {
			if c.FormKeyID == formKeyID {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (s *Store) UpdateConstraint(ctx context.Context, id int64, c models.Constraints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for jobID, set := range s.Constraints {
		for i := range set {
			if set[i].ID == id {
				s.Constraints[jobID][i].Constraints = maps.Clone(c)
				return nil
			}
		}
	}
	return nil
}

// jobs

func (s *Store) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	cp := *j
	cp.ID = s.id()
	if cp.Status == "" {
		cp.Status = models.JobOpen
	}
	s.Jobs[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	j, ok := s.Jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (s *Store) ListJobs(ctx context.Context, employerID int64) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Job
	for _, id := range slices.Sorted(maps.Keys(s.Jobs)) {
		if j := s.Jobs[id]; j.EmployerID == employerID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *Store) UpdateJob(ctx context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cp := *j
	s.Jobs[j.ID] = &cp
	return nil
}

func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.Jobs, id)
	delete(s.Constraints, id)
	return nil
}

// candidates

func (s *Store) GetCandidate(ctx context.Context, id int64) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c, ok := s.Candidates[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, c := range s.Candidates {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) UpsertCandidate(ctx context.Context, c *models.Candidate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	for id, cur := range s.Candidates {
		if cur.Email == c.Email {
			cp := *c
			cp.ID = id
			if cp.ResumePath == "" {
				cp.ResumePath, cp.ResumeMIME, cp.ResumeSize = cur.ResumePath, cur.ResumeMIME, cur.ResumeSize
			}
			s.Candidates[id] = &cp
			return id, nil
		}
	}
	cp := *c
	cp.ID = s.id()
	s.Candidates[cp.ID] = &cp
	return cp.ID, nil
}

// applications

func (s *Store) CreateApplicationWithMatch(ctx context.Context, a *models.Application, m *models.Match) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, 0, s.Err
	}
	for _, cur := range s.Apps {
		if cur.JobID == a.JobID && cur.CandidateID == a.CandidateID {
			return 0, 0, repository.ErrDuplicate
		}
	}
	app := *a
	app.ID = s.id()
	s.Apps[app.ID] = &app

	mt := *m
	mt.ID = s.id()
	mt.JobID, mt.CandidateID = a.JobID, a.CandidateID
	if mt.Status == "" {
		mt.Status = models.MatchPending
	}
	s.Matches[mt.ID] = &mt
	return app.ID, mt.ID, nil
}

func (s *Store) GetApplicationByJobAndCandidate(ctx context.Context, jobID, candidateID int64) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, a := range s.Apps {
		if a.JobID == jobID && a.CandidateID == candidateID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// matches

func (s *Store) CreateMatch(ctx context.Context, m *models.Match) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	cp := *m
	cp.ID = s.id()
	s.Matches[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) GetMatch(ctx context.Context, id int64) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	m, ok := s.Matches[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMatchesByJob(ctx context.Context, jobID int64) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Match
	for _, id := range slices.Sorted(maps.Keys(s.Matches)) {
		if m := s.Matches[id]; m.JobID == jobID {
			cp := *m
			if c, ok := s.Candidates[m.CandidateID]; ok {
				cp.CandidateName, cp.CandidateEmail = c.FullName, c.Email
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *Store) UpdateMatchStatus(ctx context.Context, id int64, status models.MatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if m, ok := s.Matches[id]; ok {
		m.Status = status
	}
	return nil
}

func (s *Store) UpdateMatchScore(ctx context.Context, id int64, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if m, ok := s.Matches[id]; ok {
		m.Score = score
	}
	return nil
}

// otp codes

func (s *Store) SaveCode(ctx context.Context, c *models.OTPCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cp := *c
	s.Codes[c.Email] = &cp
	return nil
}

func (s *Store) GetCode(ctx context.Context, email string) (*models.OTPCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c, ok := s.Codes[email]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) IncrementAttempts(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if c, ok := s.Codes[email]; ok {
		c.Attempts++
	}
	return nil
}

func (s *Store) DeleteCode(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.Codes, email)
	return nil
}

func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for email, c := range s.Codes {
		if !c.ExpiresAt.After(before) {
			delete(s.Codes, email)
			n++
		}
	}
	return n, nil
}

// constraint schemas

func (s *Store) UpsertConstraintSchema(ctx context.Context, fieldType models.FieldType, schemaJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Schemas[fieldType] = schemaJSON
	return nil
}

func (s *Store) ListConstraintSchemas(ctx context.Context) ([]models.ConstraintSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]models.ConstraintSchema, 0, len(s.Schemas))
	for _, ft := range slices.Sorted(maps.Keys(s.Schemas)) {
		out = append(out, models.ConstraintSchema{FieldType: ft, SchemaJSON: s.Schemas[ft]})
	}
	return out, nil
}

// background jobs

func (s *Store) Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	cp := *j
	cp.ID = s.id()
	cp.Status = "queued"
	s.Queue = append(s.Queue, &cp)
	return cp.ID, nil
}

func (s *Store) FetchNext(ctx context.Context) (*models.BackgroundJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	now := time.Now()
	for _, j := range s.Queue {
		if j.Status != "queued" && j.Status != "retry" {
			continue
		}
		if j.NextTryAt != nil && j.NextTryAt.After(now) {
			continue
		}
		j.Status = "running"
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i, cur := range s.Queue {
		if cur.ID == j.ID {
			cp := *j
			s.Queue[i] = &cp
		}
	}
	return nil
}

func (s *Store) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Queue = slices.DeleteFunc(s.Queue, func(cur *models.BackgroundJob) bool { return cur.ID == j.ID })
	cp := *j
	s.DeadLetter = append(s.DeadLetter, &cp)
	return nil
}

// QueuedJobs returns a snapshot of the queue.
func (s *Store) QueuedJobs() []models.BackgroundJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.BackgroundJob, 0, len(s.Queue))
	for _, j := range s.Queue {
		out = append(out, *j)
	}
	return out
}

// DeadLetters returns a snapshot of the jobs moved to the dead letter queue.
func (s *Store) DeadLetters() []models.BackgroundJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.BackgroundJob, 0, len(s.DeadLetter))
	for _, j := range s.DeadLetter {
		out = append(out, *j)
	}
	return out
}
