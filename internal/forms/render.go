package forms

import (
	"slices"

	"github.com/garnizeh/recruit/pkg/models"
)

// Control is one input of the public application form.
type Control struct {
	FormKeyID int64            `json:"form_key_id"`
	Label     string           `json:"label"`
	FieldType models.FieldType `json:"field_type"`
	Widget    Widget           `json:"widget"`
	Required  bool             `json:"required"`
	Options   []string         `json:"options,omitempty"`
	Hints     []string         `json:"hints,omitempty"`
}

// Render builds one control per form key, in the given order.
func Render(keys []models.FormKey, constraints map[int64]models.Constraints) []Control {
	out := make([]Control, 0, len(keys))
	for _, fk := range keys {
		ctl := Control{
			FormKeyID: fk.ID,
			Label:     fk.Name,
			FieldType: fk.FieldType,
			Widget:    WidgetFor(fk.FieldType),
			Required:  fk.Required,
			Hints:     Hints(fk, constraints[fk.ID]),
		}
		if fk.FieldType == models.FieldSelect {
			ctl.Options = slices.Clone(fk.EnumValues)
		}
		out = append(out, ctl)
	}
	return out
}
