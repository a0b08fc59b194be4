// Command review lists the matches of a job from the terminal and moves
// them through the review statuses.
//
//	review -job 7 -email hr@acme.test -password secret -set 12=contacted -min-score 60
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/garnizeh/recruit/internal/match"
	"github.com/garnizeh/recruit/pkg/client"
	"github.com/garnizeh/recruit/pkg/models"
)

// statusChange is one -set flag: a match id and its target status.
type statusChange struct {
	id     int64
	status models.MatchStatus
}

type changes []statusChange

func (c *changes) String() string {
	parts := make([]string, 0, len(*c))
	for _, s := range *c {
		parts = append(parts, fmt.Sprintf("%d=%s", s.id, s.status))
	}
	return strings.Join(parts, ",")
}

func (c *changes) Set(v string) error {
	idPart, statusPart, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected id=status, got %q", v)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid match id %q", idPart)
	}
	st, err := match.ParseStatus(statusPart)
	if err != nil {
		return err
	}
	*c = append(*c, statusChange{id: id, status: st})
	return nil
}

type options struct {
	baseURL  string
	email    string
	password string
	jobID    int64
	query    match.Query
	set      changes
}

// matchSource is the part of the API client the review needs.
type matchSource interface {
	match.StatusWriter
	ListMatches(ctx context.Context, jobID int64, q match.Query) ([]models.Match, error)
}

func main() {
	var o options
	flag.StringVar(&o.baseURL, "api", "http://localhost:8080", "API base URL")
	flag.StringVar(&o.email, "email", "", "Employer email")
	flag.StringVar(&o.password, "password", os.Getenv("RECRUIT_PASSWORD"), "Employer password (default $RECRUIT_PASSWORD)")
	flag.Int64Var(&o.jobID, "job", 0, "Job id")
	flag.Float64Var(&o.query.Threshold, "min-score", 0, "Minimum score in percent")
	flag.StringVar(&o.query.Status, "status", match.StatusAll, "Only show matches in this status")
	flag.StringVar(&o.query.Search, "q", "", "Search candidate name or email")
	flag.StringVar(&o.query.Sort, "sort", match.SortScore, "Sort by score; empty keeps server order")
	flag.Var(&o.set, "set", "Move a match to a status, as id=status (repeatable)")
	flag.Parse()

	if o.jobID <= 0 || o.email == "" || o.password == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := o.query.Validate(); err != nil {
		log.Fatal(err)
	}

	client.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := client.DefaultConfig()
	cfg.BaseURL = o.baseURL
	c := client.New(cfg, nil)
	defer c.Close()

	if err := c.Signin(ctx, o.email, o.password); err != nil {
		log.Fatal(err)
	}
	if err := run(ctx, c, o, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run loads every match of the job, applies the requested status changes and
// prints the filtered board. Failed changes are reported together after the
// remaining ones were tried.
func run(ctx context.Context, src matchSource, o options, out io.Writer) error {
	all, err := src.ListMatches(ctx, o.jobID, match.Query{})
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	board := match.NewBoard(src, all)

	var errs []error
	for _, ch := range o.set {
		if err := board.SetStatus(ctx, ch.id, ch.status); err != nil {
			errs = append(errs, fmt.Errorf("match %d: %w", ch.id, err))
			continue
		}
		m, _ := board.Get(ch.id)
		fmt.Fprintf(out, "%s <%s> is now %s\n", m.CandidateName, m.CandidateEmail, m.Status)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCANDIDATE\tEMAIL\tSCORE\tMET\tSTATUS")
	for _, m := range board.View(o.query) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f%%\t%d/%d\t%s\n", m.ID, m.CandidateName, m.CandidateEmail, m.Score*100, m.SatisfiedConstraints, m.TotalConstraints, m.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
