// Command apply walks a candidate through a job application from the
// terminal: it loads the job's dynamic form, verifies the email address with
// a one-time code, uploads the résumé and submits the answers.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/pkg/client"
	"github.com/garnizeh/recruit/pkg/models"
)

type options struct {
	baseURL string
	jobID   int64
	name    string
	email   string
	phone   string
	resume  string
	window  time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.baseURL, "api", "http://localhost:8080", "API base URL")
	flag.Int64Var(&o.jobID, "job", 0, "Job id to apply to")
	flag.StringVar(&o.name, "name", "", "Full name")
	flag.StringVar(&o.email, "email", "", "Email address")
	flag.StringVar(&o.phone, "phone", "", "Phone number (optional)")
	flag.StringVar(&o.resume, "resume", "", "Path to the résumé; optional when one is on file")
	flag.DurationVar(&o.window, "otp-window", 5*time.Minute, "How long a verification code stays valid")
	flag.Parse()

	if o.jobID <= 0 || o.email == "" || o.name == "" {
		flag.Usage()
		os.Exit(2)
	}

	client.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := client.DefaultConfig()
	cfg.BaseURL = o.baseURL
	c := client.New(cfg, nil)
	defer c.Close()

	if err := run(ctx, c, o, bufio.NewScanner(os.Stdin)); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, c *client.Client, o options, in *bufio.Scanner) error {
	page, err := c.LoadApplyPage(ctx, o.jobID, o.email)
	if err != nil {
		if client.Status(err) == http.StatusNotFound {
			return fmt.Errorf("job %d is not open for applications", o.jobID)
		}
		return err
	}
	form := page.Form
	fmt.Printf("%s\n%s\n\n", form.Job.Title, form.Job.Description)

	responses := models.Responses{}
	for _, ctl := range form.Controls {
		label := ctl.Label
		if ctl.Required {
			label += " *"
		}
		for _, h := range ctl.Hints {
			fmt.Printf("  (%s)\n", h)
		}
		if len(ctl.Options) > 0 {
			fmt.Printf("  options: %s\n", strings.Join(ctl.Options, ", "))
		}
		if v, ok := parseAnswer(ctl.Widget, prompt(in, label+": ")); ok {
			responses[ctl.FormKeyID] = v
		}
	}

	var (
		resume     []byte
		resumeInfo *forms.FileInfo
	)
	if o.resume != "" {
		if resume, err = os.ReadFile(o.resume); err != nil {
			return fmt.Errorf("read resume: %w", err)
		}
		mime, err := forms.SniffMIME(bytes.NewReader(resume))
		if err != nil {
			return err
		}
		resumeInfo = &forms.FileInfo{Name: filepath.Base(o.resume), Size: int64(len(resume)), MIME: mime}
	}

	if err := precheck(page, o, responses, resumeInfo); err != nil {
		return err
	}
	token, err := verifyEmail(ctx, c, o, in)
	if err != nil {
		return err
	}

	var upload *bytes.Reader
	if resume != nil {
		upload = bytes.NewReader(resume)
	}
	cand, err := submitCandidate(ctx, c, token, o, upload)
	if err != nil {
		return err
	}
	res, err := c.Apply(ctx, token, o.jobID, cand.ID, responses)
	if err != nil {
		return err
	}
	fmt.Printf("Application %d submitted: %d of %d requirements met.\n", res.ApplicationID, res.SatisfiedConstraints, res.TotalConstraints)
	return nil
}

// precheck validates everything but the email verification, so that a bad
// answer or résumé is reported before a code is sent.
func precheck(page *client.ApplyPage, o options, responses models.Responses, resume *forms.FileInfo) error {
	form := page.Form
	keys, cons := form.Keys()
	v := forms.NewValidator(forms.NewFilePolicy(form.Settings.PDFOnly, form.Settings.MaxResumeBytes), form.Settings.EnforceConstraints)
	return v.ValidateSubmission(forms.Submission{
		FullName:        o.name,
		Email:           o.email,
		EmailVerified:   true,
		Resume:          resume,
		HasResumeOnFile: page.Lookup.HasResume,
		FormKeys:        keys,
		Constraints:     cons,
		Responses:       responses,
	})
}

func submitCandidate(ctx context.Context, c *client.Client, token string, o options, resume *bytes.Reader) (*client.Candidate, error) {
	in := client.CandidateInput{FullName: o.name, Email: o.email, Phone: o.phone}
	if resume == nil {
		return c.SubmitCandidate(ctx, token, in, "", nil)
	}
	return c.SubmitCandidate(ctx, token, in, filepath.Base(o.resume), resume)
}

// verifyEmail drives the code flow until the email is verified.
func verifyEmail(ctx context.Context, c *client.Client, o options, in *bufio.Scanner) (string, error) {
	flow := otp.NewFlow(c, otp.WithWindow(o.window))
	defer flow.Close()
	flow.SetEmail(o.email)

	for !flow.Verified() {
		if flow.State() == otp.Unverified {
			if err := flow.RequestCode(ctx); err != nil {
				if errors.Is(err, otp.ErrCodeOutstanding) {
					return "", errors.New("a code was already sent to this address; use it or wait for it to expire")
				}
				return "", err
			}
			fmt.Printf("A verification code was sent to %s.\n", o.email)
		}

		code := prompt(in, fmt.Sprintf("Code (%ds left): ", flow.Remaining()))
		if code == "" {
			return "", errors.New("no verification code entered")
		}
		err := flow.Verify(ctx, code)
		switch {
		case err == nil:
		case errors.Is(err, otp.ErrInvalidCode), errors.Is(err, otp.ErrCodeMismatch):
			fmt.Println("That code is not right, try again.")
		case errors.Is(err, otp.ErrCodeExpired), errors.Is(err, otp.ErrNotRequested):
			fmt.Println("The code expired; sending a new one.")
		default:
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return flow.Token(), nil
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

// parseAnswer converts terminal input into the value the widget submits.
// Blank input leaves the field unanswered.
func parseAnswer(w forms.Widget, s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	switch w {
	case forms.WidgetNumber:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	case forms.WidgetCheckbox:
		switch strings.ToLower(s) {
		case "y", "yes", "true":
			return true, true
		case "n", "no", "false":
			return false, true
		}
	case forms.WidgetSelect:
		if strings.Contains(s, ",") {
			var out []any
			for _, p := range strings.Split(s, ",") {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out, true
		}
	}
	return s, true
}
