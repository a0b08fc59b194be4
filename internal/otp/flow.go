package otp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Sender talks to the verification backend.
type Sender interface {
	SendCode(ctx context.Context, email string) error
	// VerifyCode returns a verification token. It reports ErrCodeMismatch or
	// ErrCodeExpired for the matching server answers.
	VerifyCode(ctx context.Context, email, code string) (string, error)
}

type Option func(*Flow)

// WithWindow sets how long a sent code stays usable.
func WithWindow(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.window = d
		}
	}
}

// WithTick sets the countdown step.
func WithTick(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.tick = d
		}
	}
}

// Flow is the candidate side of email verification:
// UNVERIFIED -> CODE_SENT -> VERIFIED, falling back to UNVERIFIED when the
// countdown runs out, when the email changes or when the server reports the
// code expired. A Flow owns one countdown goroutine while a code is
// outstanding; Close stops it.
type Flow struct {
	sender Sender
	window time.Duration
	tick   time.Duration

	mu        sync.Mutex
	email     string
	state     State
	remaining int
	token     string
	sending   bool
	stop      chan struct{}
	done      chan struct{}
}

func NewFlow(sender Sender, opts ...Option) *Flow {
	f := &Flow{sender: sender, window: 5 * time.Minute, tick: time.Second}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Remaining returns the countdown ticks left on the outstanding code.
func (f *Flow) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining
}

func (f *Flow) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email
}

// Token returns the verification token once VERIFIED.
func (f *Flow) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *Flow) Verified() bool { return f.State() == Verified }

// CanRequest reports whether RequestCode would be attempted.
func (f *Flow) CanRequest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email != "" && f.state == Unverified && !f.sending
}

// SetEmail changes the address being verified. A different address drops any
// pending code or verification.
func (f *Flow) SetEmail(email string) {
	email = strings.TrimSpace(email)

	f.mu.Lock()
	if strings.EqualFold(email, f.email) {
		f.email = email
		f.mu.Unlock()
		return
	}
	f.email = email
	done := f.resetLocked()
	f.mu.Unlock()
	wait(done)
}

// RequestCode asks the backend to send a code and starts the countdown.
func (f *Flow) RequestCode(ctx context.Context) error {
	f.mu.Lock()
	switch {
	case f.email == "":
		f.mu.Unlock()
		return ErrNoEmail
	case f.state == Verified:
		f.mu.Unlock()
		return ErrAlreadyVerified
	case f.state == CodeSent || f.sending:
		f.mu.Unlock()
		return ErrCodeOutstanding
	}
	f.sending = true
	email := f.email
	f.mu.Unlock()

	err := f.sender.SendCode(ctx, email)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sending = false
	if err != nil {
		return err
	}
	if !strings.EqualFold(f.email, email) {
		return ErrEmailChanged
	}
	f.state = CodeSent
	f.remaining = int(f.window / f.tick)
	if f.remaining < 1 {
		f.remaining = 1
	}
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go f.countdown(f.stop, f.done)
	return nil
}

// Verify submits a code. A mismatch keeps the code outstanding; a
// server-reported expiry drops back to UNVERIFIED.
func (f *Flow) Verify(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return ErrInvalidCode
	}

	f.mu.Lock()
	if f.state == Verified {
		f.mu.Unlock()
		return ErrAlreadyVerified
	}
	if f.state != CodeSent {
		f.mu.Unlock()
		return ErrNotRequested
	}
	email := f.email
	f.mu.Unlock()

	token, err := f.sender.VerifyCode(ctx, email, code)

	f.mu.Lock()
	if !strings.EqualFold(f.email, email) {
		f.mu.Unlock()
		return ErrEmailChanged
	}
	switch {
	case err == nil:
		done := f.haltLocked()
		f.state = Verified
		f.remaining = 0
		f.token = token
		f.mu.Unlock()
		wait(done)
		return nil
	case errors.Is(err, ErrCodeExpired):
		done := f.resetLocked()
		f.mu.Unlock()
		wait(done)
		return err
	}
	f.mu.Unlock()
	return err
}

// Close stops the countdown, if any, and waits for it to exit.
func (f *Flow) Close() {
	f.mu.Lock()
	done := f.haltLocked()
	f.mu.Unlock()
	wait(done)
}

func (f *Flow) countdown(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(f.tick)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			f.mu.Lock()
			if f.stop != stop {
				f.mu.Unlock()
				return
			}
			f.remaining--
			if f.remaining <= 0 {
				f.remaining = 0
				f.state = Unverified
				f.stop, f.done = nil, nil
				f.mu.Unlock()
				return
			}
			f.mu.Unlock()
		}
	}
}

// resetLocked returns to UNVERIFIED. The caller waits on the returned channel
// after unlocking.
func (f *Flow) resetLocked() chan struct{} {
	done := f.haltLocked()
	f.state = Unverified
	f.remaining = 0
	f.token = ""
	return done
}

func (f *Flow) haltLocked() chan struct{} {
	if f.stop == nil {
		return nil
	}
	close(f.stop)
	done := f.done
	f.stop, f.done = nil, nil
	return done
}

func wait(done chan struct{}) {
	if done != nil {
		<-done
	}
}
