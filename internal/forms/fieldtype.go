// Package forms implements the per-company form key catalog, the per-job
// constraint model and the dynamic application form built from both.
//
// Every behavior that depends on a form key's field type goes through the
// kind table below; there is exactly one kind per models.FieldType and the
// set is closed.
package forms

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/garnizeh/recruit/pkg/models"
)

// Constraint names.
const (
	KeyMinValue        = "min_value"
	KeyMaxValue        = "max_value"
	KeyPattern         = "pattern"
	KeyAfterDate       = "after_date"
	KeyBeforeDate      = "before_date"
	KeyRequiredOptions = "required_options"
	KeyExpectedState   = "expected_state"
	KeyAllowedDomain   = "allowed_domain"
)

// DateLayout is the ISO date format used by date responses and constraints.
const DateLayout = "2006-01-02"

type Widget string

const (
	WidgetText     Widget = "text"
	WidgetTextarea Widget = "textarea"
	WidgetNumber   Widget = "number"
	WidgetDate     Widget = "date"
	WidgetLink     Widget = "url"
	WidgetSelect   Widget = "select"
	WidgetCheckbox Widget = "checkbox"
)

type kind interface {
	// keys lists the legal constraint names in editor order.
	keys() []string
	widget() Widget
	// coerce converts a present response into the kind's value type.
	coerce(fk models.FormKey, v any) (any, error)
	// checkKey enforces one constraint against a coerced value.
	checkKey(fk models.FormKey, key string, c models.Constraints, v any) error
	// normalize converts and checks a filtered constraint set in place.
	normalize(fk models.FormKey, c models.Constraints) error
	hint(c models.Constraints) []string
}

var kinds = map[models.FieldType]kind{
	models.FieldText:     textKind{w: WidgetText},
	models.FieldTextarea: textKind{w: WidgetTextarea},
	models.FieldNumber:   numberKind{},
	models.FieldDate:     dateKind{},
	models.FieldLink:     linkKind{},
	models.FieldSelect:   selectKind{},
	models.FieldCheckbox: checkboxKind{},
}

// ParseFieldType converts a raw string to a FieldType, returning an error for
// unknown values.
func ParseFieldType(s string) (models.FieldType, error) {
	ft := models.FieldType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kinds[ft]; !ok {
		return "", fmt.Errorf("unknown field type %q", s)
	}
	return ft, nil
}

// ConstraintKeys returns the legal constraint names for a field type.
func ConstraintKeys(ft models.FieldType) []string {
	k, ok := kinds[ft]
	if !ok {
		return nil
	}
	return slices.Clone(k.keys())
}

// WidgetFor returns the input control used for a field type.
func WidgetFor(ft models.FieldType) Widget {
	if k, ok := kinds[ft]; ok {
		return k.widget()
	}
	return WidgetText
}

func kindOf(fk models.FormKey) (kind, error) {
	k, ok := kinds[fk.FieldType]
	if !ok {
		return nil, fmt.Errorf("form key %d: unknown field type %q", fk.ID, fk.FieldType)
	}
	return k, nil
}

// number

type numberKind struct{}

func (numberKind) keys() []string { return []string{KeyMinValue, KeyMaxValue} }
func (numberKind) widget() Widget { return WidgetNumber }

func (numberKind) coerce(fk models.FormKey, v any) (any, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, invalid(fk.Name, "%s must be a number", fk.Name)
	}
	return f, nil
}

func (numberKind) checkKey(fk models.FormKey, key string, c models.Constraints, v any) error {
	f := v.(float64)
	bound, _ := toFloat(c[key])
	switch key {
	case KeyMinValue:
		if f < bound {
			return invalid(fk.Name, "%s must be at least %s", fk.Name, formatFloat(bound))
		}
	case KeyMaxValue:
		if f > bound {
			return invalid(fk.Name, "%s must be at most %s", fk.Name, formatFloat(bound))
		}
	}
	return nil
}

func (numberKind) normalize(fk models.FormKey, c models.Constraints) error {
	for _, key := range []string{KeyMinValue, KeyMaxValue} {
		raw, ok := c[key]
		if !ok {
			continue
		}
		f, ok := toFloat(raw)
		if !ok {
			return invalid(fk.Name, "%s: %s must be a number", fk.Name, key)
		}
		c[key] = f
	}
	lo, hasLo := c[KeyMinValue].(float64)
	hi, hasHi := c[KeyMaxValue].(float64)
	if hasLo && hasHi && lo > hi {
		return invalid(fk.Name, "%s: min_value must not exceed max_value", fk.Name)
	}
	return nil
}

func (numberKind) hint(c models.Constraints) []string {
	lo, hasLo := toFloat(c[KeyMinValue])
	hi, hasHi := toFloat(c[KeyMaxValue])
	switch {
	case hasLo && hasHi:
		return []string{fmt.Sprintf("Between %s and %s", formatFloat(lo), formatFloat(hi))}
	case hasLo:
		return []string{"At least " + formatFloat(lo)}
	case hasHi:
		return []string{"At most " + formatFloat(hi)}
	}
	return nil
}

// text and textarea

type textKind struct{ w Widget }

func (textKind) keys() []string   { return []string{KeyPattern} }
func (k textKind) widget() Widget { return k.w }

func (textKind) coerce(fk models.FormKey, v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case float64, bool:
		return fmt.Sprint(s), nil
	}
	return nil, invalid(fk.Name, "%s must be text", fk.Name)
}

func (textKind) checkKey(fk models.FormKey, key string, c models.Constraints, v any) error {
	if key != KeyPattern {
		return nil
	}
	p, _ := c[KeyPattern].(string)
	re, err := regexp.Compile(p)
	if err != nil {
		return invalid(fk.Name, "%s has an invalid pattern", fk.Name)
	}
	if !re.MatchString(v.(string)) {
		return invalid(fk.Name, "%s does not match the required format", fk.Name)
	}
	return nil
}

func (textKind) normalize(fk models.FormKey, c models.Constraints) error {
	raw, ok := c[KeyPattern]
	if !ok {
		return nil
	}
	p, ok := raw.(string)
	if !ok {
		return invalid(fk.Name, "%s: pattern must be a string", fk.Name)
	}
	if _, err := regexp.Compile(p); err != nil {
		return invalid(fk.Name, "%s: invalid pattern: %v", fk.Name, err)
	}
	return nil
}

func (textKind) hint(c models.Constraints) []string {
	if p, ok := c[KeyPattern].(string); ok {
		return []string{"Must match " + p}
	}
	return nil
}

// date

type dateKind struct{}

func (dateKind) keys() []string { return []string{KeyAfterDate, KeyBeforeDate} }
func (dateKind) widget() Widget { return WidgetDate }

func (dateKind) coerce(fk models.FormKey, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, invalid(fk.Name, "%s must be a date (YYYY-MM-DD)", fk.Name)
	}
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, invalid(fk.Name, "%s must be a date (YYYY-MM-DD)", fk.Name)
	}
	return d, nil
}

func (dateKind) checkKey(fk models.FormKey, key string, c models.Constraints, v any) error {
	d := v.(time.Time)
	raw, _ := c[key].(string)
	bound, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil
	}
	switch key {
	case KeyAfterDate:
		if !d.After(bound) {
			return invalid(fk.Name, "%s must be after %s", fk.Name, c[key])
		}
	case KeyBeforeDate:
		if !d.Before(bound) {
			return invalid(fk.Name, "%s must be before %s", fk.Name, c[key])
		}
	}
	return nil
}

func (dateKind) normalize(fk models.FormKey, c models.Constraints) error {
	parsed := map[string]time.Time{}
	for _, key := range []string{KeyAfterDate, KeyBeforeDate} {
		raw, ok := c[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return invalid(fk.Name, "%s: %s must be a date (YYYY-MM-DD)", fk.Name, key)
		}
		s = strings.TrimSpace(s)
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return invalid(fk.Name, "%s: %s must be a date (YYYY-MM-DD)", fk.Name, key)
		}
		c[key] = s
		parsed[key] = d
	}
	after, hasAfter := parsed[KeyAfterDate]
	before, hasBefore := parsed[KeyBeforeDate]
	if hasAfter && hasBefore && !after.Before(before) {
		return invalid(fk.Name, "%s: after_date must be earlier than before_date", fk.Name)
	}
	return nil
}

func (dateKind) hint(c models.Constraints) []string {
	var out []string
	if s, ok := c[KeyAfterDate].(string); ok {
		out = append(out, "After "+s)
	}
	if s, ok := c[KeyBeforeDate].(string); ok {
		out = append(out, "Before "+s)
	}
	return out
}

// link

type linkKind struct{}

func (linkKind) keys() []string { return []string{KeyAllowedDomain} }
func (linkKind) widget() Widget { return WidgetLink }

func (linkKind) coerce(fk models.FormKey, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, invalid(fk.Name, "%s must be a valid link", fk.Name)
	}
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, invalid(fk.Name, "%s must be a valid link", fk.Name)
	}
	return u, nil
}

func (linkKind) checkKey(fk models.FormKey, key string, c models.Constraints, v any) error {
	if key != KeyAllowedDomain {
		return nil
	}
	domain, _ := c[KeyAllowedDomain].(string)
	domain = strings.ToLower(domain)
	host := strings.ToLower(v.(*url.URL).Hostname())
	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return invalid(fk.Name, "%s must be a link on %s", fk.Name, domain)
	}
	return nil
}

func (linkKind) normalize(fk models.FormKey, c models.Constraints) error {
	raw, ok := c[KeyAllowedDomain]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return invalid(fk.Name, "%s: allowed_domain must be a string", fk.Name)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(strings.TrimSuffix(s, "/"), "www.")
	if s == "" || strings.ContainsAny(s, "/ ") {
		return invalid(fk.Name, "%s: allowed_domain must be a bare domain", fk.Name)
	}
	c[KeyAllowedDomain] = s
	return nil
}

func (linkKind) hint(c models.Constraints) []string {
	if d, ok := c[KeyAllowedDomain].(string); ok {
		return []string{"Link must be on " + d}
	}
	return nil
}

// select

type selectKind struct{}

func (selectKind) keys() []string { return []string{KeyRequiredOptions} }
func (selectKind) widget() Widget { return WidgetSelect }

func (selectKind) coerce(fk models.FormKey, v any) (any, error) {
	chosen, ok := toStrings(v)
	if !ok {
		return nil, invalid(fk.Name, "%s must be one of the listed options", fk.Name)
	}
	if len(fk.EnumValues) > 0 {
		for _, s := range chosen {
			if !slices.Contains(fk.EnumValues, s) {
				return nil, invalid(fk.Name, "%s must be one of the listed options", fk.Name)
			}
		}
	}
	return chosen, nil
}

// checkKey passes when at least one chosen value is a required option.
func (selectKind) checkKey(fk models.FormKey, key string, c models.Constraints, v any) error {
	if key != KeyRequiredOptions {
		return nil
	}
	required, _ := toStrings(c[KeyRequiredOptions])
	for _, s := range v.([]string) {
		if slices.Contains(required, s) {
			return nil
		}
	}
	return invalid(fk.Name, "%s must be one of: %s", fk.Name, strings.Join(required, ", "))
}

func (selectKind) normalize(fk models.FormKey, c models.Constraints) error {
	raw, ok := c[KeyRequiredOptions]
	if !ok {
		return nil
	}
	opts, ok := toStrings(raw)
	if !ok {
		return invalid(fk.Name, "%s: required_options must be a list of strings", fk.Name)
	}
	// keep enum order so the stored payload is stable
	ordered := make([]string, 0, len(opts))
	for _, o := range opts {
		if !slices.Contains(fk.EnumValues, o) {
			return invalid(fk.Name, "%s: required option %q is not one of the field's values", fk.Name, o)
		}
	}
	for _, e := range fk.EnumValues {
		if slices.Contains(opts, e) {
			ordered = append(ordered, e)
		}
	}
	c[KeyRequiredOptions] = ordered
	return nil
}

func (selectKind) hint(c models.Constraints) []string {
	if opts, ok := toStrings(c[KeyRequiredOptions]); ok && len(opts) > 0 {
		return []string{"Accepted options: " + strings.Join(opts, ", ")}
	}
	return nil
}

// checkbox

type checkboxKind struct{}

func (checkboxKind) keys() []string { return []string{KeyExpectedState} }
func (checkboxKind) widget() Widget { return WidgetCheckbox }

func (checkboxKind) coerce(fk models.FormKey, v any) (any, error) {
	b, ok := toBool(v)
	if !ok {
		return nil, invalid(fk.Name, "%s must be checked or unchecked", fk.Name)
	}
	return b, nil
}

func (checkboxKind) checkKey(fk models.FormKey, key string, c models.Constraints, v any) error {
	if key != KeyExpectedState {
		return nil
	}
	want, ok := c[KeyExpectedState].(bool)
	if !ok {
		return nil
	}
	if v.(bool) != want {
		if want {
			return invalid(fk.Name, "%s must be checked", fk.Name)
		}
		return invalid(fk.Name, "%s must be unchecked", fk.Name)
	}
	return nil
}

func (checkboxKind) normalize(fk models.FormKey, c models.Constraints) error {
	raw, ok := c[KeyExpectedState]
	if !ok {
		return nil
	}
	b, ok := toBool(raw)
	if !ok {
		return invalid(fk.Name, "%s: expected_state must be true, false or null", fk.Name)
	}
	c[KeyExpectedState] = b
	return nil
}

func (checkboxKind) hint(c models.Constraints) []string {
	if want, ok := c[KeyExpectedState].(bool); ok {
		if want {
			return []string{"Must be checked"}
		}
		return []string{"Must be unchecked"}
	}
	return nil
}

// value helpers

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		return p, err == nil
	}
	return false, false
}

func toStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case string:
		return []string{s}, true
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
