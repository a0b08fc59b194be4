package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/storage"
)

var pdf = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestSaveOpenRemove(t *testing.T) {
	s, err := storage.NewLocal(filepath.Join(t.TempDir(), "uploads"), forms.ResumePolicy)
	require.NoError(t, err)

	st, err := s.Save(context.Background(), "../../etc/cv.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.Equal(t, forms.MIMEPDF, st.MIME)
	assert.Equal(t, int64(len(pdf)), st.Size)
	assert.True(t, strings.HasSuffix(st.Path, ".pdf"))
	assert.NotContains(t, st.Path, "cv")

	rc, err := s.Open(st.Path)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, pdf, got)

	require.NoError(t, s.Remove(st.Path))
	require.NoError(t, s.Remove(st.Path))
	_, err = s.Open(st.Path)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSaveRejectsByContent(t *testing.T) {
	s, err := storage.NewLocal(t.TempDir(), forms.PDFOnlyPolicy)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "cv.pdf", strings.NewReader("just some plain text pretending to be a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, forms.ErrValidation)
	assert.EqualError(t, err, "Resume must be a PDF document")
}

func TestSaveRejectsOversize(t *testing.T) {
	s, err := storage.NewLocal(t.TempDir(), forms.NewFilePolicy(false, 1<<10))
	require.NoError(t, err)

	big := append(append([]byte{}, pdf...), bytes.Repeat([]byte("a"), 2<<10)...)
	_, err = s.Save(context.Background(), "cv.pdf", bytes.NewReader(big))
	assert.EqualError(t, err, "Resume must be 1KB or smaller")
}

func TestOpenRejectsTraversal(t *testing.T) {
	s, err := storage.NewLocal(t.TempDir(), forms.ResumePolicy)
	require.NoError(t, err)

	for _, p := range []string{"", "../secret", "a/b.pdf", ".hidden"} {
		_, err := s.Open(p)
		assert.Error(t, err, p)
	}
}
