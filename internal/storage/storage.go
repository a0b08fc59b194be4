// Package storage keeps uploaded résumés on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/garnizeh/recruit/internal/forms"
)

// ErrNotFound is returned when a stored file does not exist.
var ErrNotFound = errors.New("file not found")

// Stored describes a saved file. Path is relative to the store root.
type Stored struct {
	Path string
	MIME string
	Size int64
}

// Local stores files in a directory under random names.
type Local struct {
	dir    string
	policy forms.FilePolicy
}

func NewLocal(dir string, policy forms.FilePolicy) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, policy: policy}, nil
}

// Save reads r, checks the sniffed type and size against the policy and
// writes the file under a uuid name with the extension of the detected type.
// The client supplied name is never used on disk.
func (s *Local) Save(ctx context.Context, name string, r io.Reader) (Stored, error) {
	limit := s.policy.MaxBytes
	if limit <= 0 {
		limit = forms.DefaultMaxResumeBytes
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return Stored{}, fmt.Errorf("read upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	mt := mimetype.Detect(buf.Bytes())
	info := forms.FileInfo{Name: name, Size: n, MIME: mt.String()}
	if err := s.policy.Check(info); err != nil {
		return Stored{}, err
	}

	rel := uuid.NewString() + mt.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, rel), buf.Bytes(), 0o640); err != nil {
		return Stored{}, fmt.Errorf("write upload: %w", err)
	}
	return Stored{Path: rel, MIME: mt.String(), Size: n}, nil
}

// Open returns the stored file for reading.
func (s *Local) Open(rel string) (io.ReadCloser, error) {
	p, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Remove deletes a stored file. Removing a missing file is not an error.
func (s *Local) Remove(rel string) error {
	p, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Local) resolve(rel string) (string, error) {
	if rel == "" || rel != filepath.Base(rel) || strings.HasPrefix(rel, ".") {
		return "", fmt.Errorf("invalid stored path %q", rel)
	}
	return filepath.Join(s.dir, rel), nil
}
