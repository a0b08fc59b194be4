package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

// JobDeliver is the background job type that emails a code.
const JobDeliver = "otp.deliver"

// DefaultMaxAttempts is how many wrong codes are accepted before the code is
// discarded.
const DefaultMaxAttempts = 5

// Enqueuer schedules background work.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error)
}

// DeliverPayload is the payload of an otp.deliver job.
type DeliverPayload struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationClaims are carried by the token returned after a successful
// verification.
type VerificationClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Service issues and checks verification codes.
type Service struct {
	store       repository.OTPRepo
	queue       Enqueuer
	secret      []byte
	window      time.Duration
	tokenTTL    time.Duration
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(store repository.OTPRepo, queue Enqueuer, secret string, window, tokenTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		queue:       queue,
		secret:      []byte(secret),
		window:      window,
		tokenTTL:    tokenTTL,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Window returns how long an issued code stays valid.
func (s *Service) Window() time.Duration { return s.window }

// Send issues a new code for email unless an unexpired one is outstanding.
func (s *Service) Send(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrNoEmail
	}
	now := s.now()

	cur, err := s.store.GetCode(ctx, email)
	if err != nil {
		return fmt.Errorf("get code: %w", err)
	}
	if cur != nil && cur.ExpiresAt.After(now) {
		return ErrCodeOutstanding
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	rec := &models.OTPCode{Email: email, CodeHash: string(hash), ExpiresAt: now.Add(s.window)}
	if err := s.store.SaveCode(ctx, rec); err != nil {
		return fmt.Errorf("save code: %w", err)
	}

	if s.queue == nil {
		s.logger.Warn("otp: no delivery queue configured", slog.String("email", email))
		return nil
	}
	payload := DeliverPayload{Email: email, Code: code, ExpiresAt: rec.ExpiresAt}
	if _, err := s.queue.Enqueue(ctx, JobDeliver, payload, 10, 3); err != nil {
		return fmt.Errorf("enqueue delivery: %w", err)
	}
	s.logger.Info("otp: code issued", slog.String("email", email), slog.Time("expires_at", rec.ExpiresAt))
	return nil
}

// Verify checks code and returns a verification token on success.
func (s *Service) Verify(ctx context.Context, email, code string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", ErrNoEmail
	}
	if !ValidCode(code) {
		return "", ErrInvalidCode
	}

	cur, err := s.store.GetCode(ctx, email)
	if err != nil {
		return "", fmt.Errorf("get code: %w", err)
	}
	if cur == nil {
		return "", ErrCodeExpired
	}
	if !cur.ExpiresAt.After(s.now()) || cur.Attempts >= s.maxAttempts {
		if err := s.store.DeleteCode(ctx, email); err != nil {
			s.logger.Error("otp: delete expired code", slog.String("email", email), slog.Any("err", err))
		}
		return "", ErrCodeExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(cur.CodeHash), []byte(code)) != nil {
		if err := s.store.IncrementAttempts(ctx, email); err != nil {
			return "", fmt.Errorf("increment attempts: %w", err)
		}
		return "", ErrCodeMismatch
	}

	if err := s.store.DeleteCode(ctx, email); err != nil {
		return "", fmt.Errorf("delete code: %w", err)
	}
	return s.issueToken(email)
}

// VerifyToken checks that token is a valid verification token for email.
func (s *Service) VerifyToken(token, email string) error {
	claims := &VerificationClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	if claims.Purpose != TokenPurpose || claims.Email != NormalizeEmail(email) {
		return ErrInvalidToken
	}
	return nil
}

// PurgeExpired removes every code that expired before now.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired codes: %w", err)
	}
	return n, nil
}

func (s *Service) issueToken(email string) (string, error) {
	now := s.now()
	claims := VerificationClaims{
		Email:   email,
		Purpose: TokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tok, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
