package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/match"
	"github.com/garnizeh/recruit/internal/otp"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeServiceError maps domain errors to HTTP responses. Unknown errors are
// logged and reported as 500 without their text.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *forms.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, forms.ErrNotFound), errors.Is(err, match.ErrUnknownMatch):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, match.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, otp.ErrCodeOutstanding):
		writeError(w, http.StatusTooManyRequests, "A verification code was already sent; wait for it to expire")
	case errors.Is(err, otp.ErrCodeExpired):
		writeError(w, http.StatusGone, "Verification code expired; request a new one")
	case errors.Is(err, otp.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, "Invalid verification code")
	case errors.Is(err, otp.ErrInvalidCode), errors.Is(err, otp.ErrNoEmail):
		writeError(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, otp.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "Email verification is required")
	default:
		logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestID(r.Context())),
			slog.Any("err", err),
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// decodeJSON reads the body into v and runs its validate tags.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &forms.ValidationError{Field: "body", Message: "Invalid request"}
	}
	if reflect.Indirect(reflect.ValueOf(v)).Kind() != reflect.Struct {
		return nil
	}
	return validateStruct(v)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &forms.ValidationError{Field: fe.Field(), Message: fieldMessage(fe)}
	}
	return &forms.ValidationError{Field: "body", Message: "Invalid request"}
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email", name)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be positive", name)
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// pathID parses a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, &forms.ValidationError{Field: name, Message: fmt.Sprintf("invalid %s", name)}
	}
	return id, nil
}
