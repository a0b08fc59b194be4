package forms

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/garnizeh/recruit/pkg/models"
)

// NoConstraintsPlaceholder is shown for field types without a constraint shape.
const NoConstraintsPlaceholder = "No constraints available for this field type"

// Variant selects which constraint shapes the editor offers.
type Variant string

const (
	VariantFull  Variant = "full"
	VariantBasic Variant = "basic"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantFull, VariantBasic:
		return v, nil
	case "":
		return VariantFull, nil
	}
	return "", fmt.Errorf("unknown editor variant %q", s)
}

// shapeKeys returns the constraint inputs the variant offers for a field type.
func (v Variant) shapeKeys(ft models.FieldType) []string {
	if v == VariantBasic {
		switch ft {
		case models.FieldText, models.FieldTextarea, models.FieldLink:
			return nil
		}
	}
	return ConstraintKeys(ft)
}

// Input kinds of an editor field.
const (
	InputNumber    = "number"
	InputText      = "text"
	InputDate      = "date"
	InputChecklist = "checklist"
	InputTristate  = "tristate"
)

// Tristate values of the expected_state input.
const (
	StateAny       = "any"
	StateChecked   = "true"
	StateUnchecked = "false"
)

type OptionToggle struct {
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
}

// EditorField is one pre-populated constraint input.
type EditorField struct {
	Key     string         `json:"key"`
	Label   string         `json:"label"`
	Input   string         `json:"input"`
	Value   string         `json:"value,omitempty"`
	Options []OptionToggle `json:"options,omitempty"`
}

// EditorView is what the editor shows for one selected form key.
type EditorView struct {
	FormKeyID   int64            `json:"form_key_id"`
	Name        string           `json:"name"`
	FieldType   models.FieldType `json:"field_type"`
	Editable    bool             `json:"editable"`
	Placeholder string           `json:"placeholder,omitempty"`
	Fields      []EditorField    `json:"fields"`
}

var labels = map[string]string{
	KeyMinValue:        "Min",
	KeyMaxValue:        "Max",
	KeyPattern:         "Pattern",
	KeyAfterDate:       "After",
	KeyBeforeDate:      "Before",
	KeyRequiredOptions: "Required options",
	KeyExpectedState:   "Expected state",
	KeyAllowedDomain:   "Allowed domain",
}

// Editor holds the toggle-and-edit state of a job's constraint selection.
// It is not safe for concurrent use.
type Editor struct {
	variant  Variant
	keys     map[int64]models.FormKey
	order    []int64
	selected map[int64]models.Constraints
	initial  []models.ConstraintInput
}

// NewEditor starts an editor over the company's form keys, pre-selecting the
// entries in existing.
func NewEditor(variant Variant, keys []models.FormKey, existing map[int64]models.Constraints) *Editor {
	e := &Editor{
		variant:  variant,
		keys:     make(map[int64]models.FormKey, len(keys)),
		selected: make(map[int64]models.Constraints, len(existing)),
	}
	for _, fk := range keys {
		e.keys[fk.ID] = fk
	}
	for _, fk := range keys {
		if c, ok := existing[fk.ID]; ok {
			e.order = append(e.order, fk.ID)
			e.selected[fk.ID] = maps.Clone(c)
			if e.selected[fk.ID] == nil {
				e.selected[fk.ID] = models.Constraints{}
			}
		}
	}
	e.initial = e.Payload()
	return e
}

func (e *Editor) IsSelected(id int64) bool {
	_, ok := e.selected[id]
	return ok
}

// Toggle flips the selection of a form key and reports the new state.
// Selecting adds an empty constraint set; deselecting removes the entry.
func (e *Editor) Toggle(id int64) (bool, error) {
	if _, ok := e.keys[id]; !ok {
		return false, ErrNotFound
	}
	if e.IsSelected(id) {
		delete(e.selected, id)
		e.order = slices.DeleteFunc(e.order, func(x int64) bool { return x == id })
		return false, nil
	}
	e.selected[id] = models.Constraints{}
	e.order = append(e.order, id)
	return true, nil
}

// Set edits one constraint of a selected form key. Blank values are kept
// until Payload strips them.
func (e *Editor) Set(id int64, key string, value any) error {
	fk, c, err := e.entry(id)
	if err != nil {
		return err
	}
	if !slices.Contains(e.variant.shapeKeys(fk.FieldType), key) {
		return invalid(key, "%s has no %s constraint", fk.Name, key)
	}

	switch fk.FieldType {
	case models.FieldNumber:
		if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
			f, ok := toFloat(s)
			if !ok {
				return invalid(key, "%s must be a number", labels[key])
			}
			value = f
		}
	case models.FieldCheckbox:
		if s, ok := value.(string); ok {
			switch s {
			case StateAny, "":
				value = nil
			default:
				b, ok := toBool(s)
				if !ok {
					return invalid(key, "%s must be any, true or false", labels[key])
				}
				value = b
			}
		}
	case models.FieldSelect:
		opts, ok := toStrings(value)
		if !ok {
			return invalid(key, "%s must be a list of options", labels[key])
		}
		value = slices.Clone(opts)
	}
	c[key] = value
	return nil
}

// ToggleOption checks or unchecks one required option of a select key.
func (e *Editor) ToggleOption(id int64, option string) error {
	fk, c, err := e.entry(id)
	if err != nil {
		return err
	}
	if fk.FieldType != models.FieldSelect || !slices.Contains(fk.EnumValues, option) {
		return invalid(KeyRequiredOptions, "%q is not an option of %s", option, fk.Name)
	}
	cur, _ := toStrings(c[KeyRequiredOptions])
	if slices.Contains(cur, option) {
		cur = slices.DeleteFunc(slices.Clone(cur), func(s string) bool { return s == option })
	} else {
		cur = append(slices.Clone(cur), option)
	}
	c[KeyRequiredOptions] = cur
	return nil
}

// Payload returns the cleaned constraint list in selection order.
func (e *Editor) Payload() []models.ConstraintInput {
	out := make([]models.ConstraintInput, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, models.ConstraintInput{FormKeyID: id, Constraints: Clean(e.selected[id])})
	}
	return out
}

// Dirty reports whether the payload differs from the one the editor started with.
func (e *Editor) Dirty() bool {
	cur := e.Payload()
	if len(cur) != len(e.initial) {
		return true
	}
	for i := range cur {
		if cur[i].FormKeyID != e.initial[i].FormKeyID || !Equal(cur[i].Constraints, e.initial[i].Constraints) {
			return true
		}
	}
	return false
}

// View returns the constraint inputs of a selected form key, pre-populated
// from its current constraints.
func (e *Editor) View(id int64) (EditorView, error) {
	fk, c, err := e.entry(id)
	if err != nil {
		return EditorView{}, err
	}
	v := EditorView{FormKeyID: fk.ID, Name: fk.Name, FieldType: fk.FieldType}

	shape := e.variant.shapeKeys(fk.FieldType)
	if len(shape) == 0 {
		v.Placeholder = NoConstraintsPlaceholder
		return v, nil
	}
	v.Editable = true
	for _, key := range shape {
		f := EditorField{Key: key, Label: labels[key]}
		switch fk.FieldType {
		case models.FieldNumber:
			f.Input = InputNumber
			if n, ok := toFloat(c[key]); ok {
				f.Value = formatFloat(n)
			}
		case models.FieldDate:
			f.Input = InputDate
			f.Value, _ = c[key].(string)
		case models.FieldSelect:
			f.Input = InputChecklist
			chosen, _ := toStrings(c[key])
			for _, opt := range fk.EnumValues {
				f.Options = append(f.Options, OptionToggle{Value: opt, Checked: slices.Contains(chosen, opt)})
			}
			if len(fk.EnumValues) == 0 {
				v.Editable = false
			}
		case models.FieldCheckbox:
			f.Input = InputTristate
			f.Value = StateAny
			if b, ok := c[key].(bool); ok {
				f.Value = StateUnchecked
				if b {
					f.Value = StateChecked
				}
			}
			for _, s := range []string{StateAny, StateChecked, StateUnchecked} {
				f.Options = append(f.Options, OptionToggle{Value: s, Checked: s == f.Value})
			}
		default:
			f.Input = InputText
			f.Value, _ = c[key].(string)
		}
		v.Fields = append(v.Fields, f)
	}
	return v, nil
}

func (e *Editor) entry(id int64) (models.FormKey, models.Constraints, error) {
	fk, ok := e.keys[id]
	if !ok {
		return models.FormKey{}, nil, ErrNotFound
	}
	c, ok := e.selected[id]
	if !ok {
		return fk, nil, invalid(fk.Name, "%s is not selected", fk.Name)
	}
	return fk, c, nil
}
