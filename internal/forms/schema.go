package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
	"github.com/qri-io/jsonschema"
)

// SchemaLoader loads and caches the compiled JSON Schema describing the
// constraint object of each field type.
type SchemaLoader struct {
	repo  repository.SchemaRepo
	mu    sync.RWMutex
	cache map[models.FieldType]*jsonschema.Schema
}

func NewSchemaLoader(ctx context.Context, r repository.SchemaRepo) (*SchemaLoader, error) {
	l := &SchemaLoader{
		repo:  r,
		cache: make(map[models.FieldType]*jsonschema.Schema),
	}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}

	return l, nil
}

// Schema returns the compiled schema for a field type.
func (l *SchemaLoader) Schema(ft models.FieldType) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[ft]
	l.mu.RUnlock()

	return s, ok
}

// Reload loads all constraint schemas from the repository and compiles them.
// The previous cache stays in place if any schema fails to compile.
func (l *SchemaLoader) Reload(ctx context.Context) error {
	rows, err := l.repo.ListConstraintSchemas(ctx)
	if err != nil {
		return fmt.Errorf("load constraint schemas: %w", err)
	}

	newCache := make(map[models.FieldType]*jsonschema.Schema, len(rows))
	for _, r := range rows {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(r.SchemaJSON), rs); err != nil {
			return fmt.Errorf("compile schema %s: %w", r.FieldType, err)
		}
		newCache[r.FieldType] = rs
	}

	l.mu.Lock()
	l.cache = newCache
	l.mu.Unlock()
	return nil
}

// Validate checks a sanitized constraint object against its field type's
// schema. Field types without a stored schema pass.
func (l *SchemaLoader) Validate(ctx context.Context, fk models.FormKey, c models.Constraints) error {
	if l == nil {
		return nil
	}
	s, ok := l.Schema(fk.FieldType)
	if !ok {
		return nil
	}

	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode constraints: %w", err)
	}
	verrs, err := s.ValidateBytes(ctx, b)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			msgs = append(msgs, strings.TrimSpace(v.PropertyPath+" "+v.Message))
		}
		return invalid(fk.Name, "%s: invalid constraints: %s", fk.Name, strings.Join(msgs, "; "))
	}
	return nil
}
