package api_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/garnizeh/recruit/pkg/models"
)

func TestFormKeyHandlers(t *testing.T) {
	env := newTestEnv(t)
	tok := employerToken(t, 1)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantDetail string
	}{
		{"Create_Number", map[string]any{"name": "Years of experience", "field_type": "number", "required": true}, http.StatusCreated, ""},
		{"Create_Select", map[string]any{"name": "Stack", "field_type": "select", "enum_values": []string{" Go ", "Rust", "Go", ""}}, http.StatusCreated, ""},
		{"Create_MissingName", map[string]any{"name": "  ", "field_type": "text"}, http.StatusBadRequest, "name is required"},
		{"Create_MissingType", map[string]any{"name": "Portfolio"}, http.StatusBadRequest, "field_type is required"},
		{"Create_UnknownType", map[string]any{"name": "Color", "field_type": "color"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, call{method: http.MethodPost, path: "/v1/form_keys", body: tt.body, token: tok})
			expectStatus(t, w, tt.wantStatus)
			if tt.wantDetail != "" {
				if got := detail(t, w); got != tt.wantDetail {
					t.Fatalf("expected detail %q got %q", tt.wantDetail, got)
				}
			}
		})
	}

	w := env.do(t, call{method: http.MethodGet, path: "/v1/form_keys/", token: tok})
	expectStatus(t, w, http.StatusOK)
	var keys []models.FormKey
	decode(t, w, &keys)
	if len(keys) != 2 {
		t.Fatalf("expected 2 form keys got %d", len(keys))
	}
	var sel models.FormKey
	for _, k := range keys {
		if k.FieldType == models.FieldSelect {
			sel = k
		}
	}
	if len(sel.EnumValues) != 2 || sel.EnumValues[0] != "Go" || sel.EnumValues[1] != "Rust" {
		t.Fatalf("enum values not cleaned: %v", sel.EnumValues)
	}

	// another company sees none of them and cannot touch them
	other := employerToken(t, 2)
	w = env.do(t, call{method: http.MethodGet, path: "/v1/form_keys", token: other})
	expectStatus(t, w, http.StatusOK)
	if w.Body.String() != "[]\n" {
		t.Fatalf("expected empty list got %s", w.Body.String())
	}
	path := "/v1/form_keys/" + strconv.FormatInt(sel.ID, 10)
	w = env.do(t, call{method: http.MethodDelete, path: path, token: other})
	expectStatus(t, w, http.StatusNotFound)

	w = env.do(t, call{method: http.MethodPatch, path: path, token: tok, body: map[string]any{"name": "Primary stack", "field_type": "select", "enum_values": []string{"Go"}}})
	expectStatus(t, w, http.StatusOK)
	var updated models.FormKey
	decode(t, w, &updated)
	if updated.Name != "Primary stack" || len(updated.EnumValues) != 1 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	w = env.do(t, call{method: http.MethodDelete, path: path, token: tok})
	expectStatus(t, w, http.StatusNoContent)
	if _, ok := env.store.FormKeys[sel.ID]; ok {
		t.Fatalf("form key still stored")
	}
}

func TestFormKeysRequireSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, call{method: http.MethodGet, path: "/v1/form_keys"})
	expectStatus(t, w, http.StatusUnauthorized)
}
