package forms

import (
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/garnizeh/recruit/pkg/models"
)

// Clean returns a copy of c without vacuous entries: nil values, blank
// strings and empty lists. A vacuous key would otherwise still count as a
// configured constraint.
func Clean(c models.Constraints) models.Constraints {
	out := make(models.Constraints, len(c))
	for k, v := range c {
		if isEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// Sanitize prepares a constraint set for persistence: it cleans c, silently
// drops keys that are not legal for the form key's field type, normalizes
// value types and rejects semantically invalid sets with a *ValidationError.
func Sanitize(fk models.FormKey, c models.Constraints) (models.Constraints, error) {
	k, err := kindOf(fk)
	if err != nil {
		return nil, invalid(fk.Name, "%s", err.Error())
	}

	cleaned := Clean(c)
	out := make(models.Constraints, len(cleaned))
	for _, key := range k.keys() {
		if v, ok := cleaned[key]; ok {
			out[key] = v
		}
	}
	if err := k.normalize(fk, out); err != nil {
		return nil, err
	}
	// normalization can reduce a list to nothing
	return Clean(out), nil
}

// Reconcile fits a stored constraint set to an edited form key. Keys the
// field type no longer accepts are dropped and required options that are no
// longer among the key's values are removed before c is sanitized again.
func Reconcile(fk models.FormKey, c models.Constraints) (models.Constraints, error) {
	c = maps.Clone(c)
	if fk.FieldType == models.FieldSelect {
		if opts, ok := toStrings(c[KeyRequiredOptions]); ok {
			c[KeyRequiredOptions] = slices.DeleteFunc(slices.Clone(opts), func(o string) bool {
				return !slices.Contains(fk.EnumValues, o)
			})
		}
	}
	return Sanitize(fk, c)
}

// Hints returns the candidate-facing descriptions of a constraint set.
func Hints(fk models.FormKey, c models.Constraints) []string {
	k, ok := kinds[fk.FieldType]
	if !ok || len(c) == 0 {
		return nil
	}
	return k.hint(c)
}

// Count returns how many individual constraints c configures for fk.
func Count(fk models.FormKey, c models.Constraints) int {
	k, ok := kinds[fk.FieldType]
	if !ok {
		return 0
	}
	n := 0
	for _, key := range k.keys() {
		if v, ok := c[key]; ok && !isEmpty(v) {
			n++
		}
	}
	return n
}

// Equal reports whether two constraint sets hold the same keys and values.
func Equal(a, b models.Constraints) bool {
	return maps.EqualFunc(Clean(a), Clean(b), func(x, y any) bool { return reflect.DeepEqual(x, y) })
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}
