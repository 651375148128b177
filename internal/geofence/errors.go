package geofence

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrAssignmentUnavailable is returned when a client-bound actor carries no
// client id, so no assignment can be derived.
var ErrAssignmentUnavailable = errors.New("geofence: no client available for assignment")

// ValidationError collects field-level failures in the order they were found.
// Entered values are never touched; the caller shows each message next to
// its control.
type ValidationError struct {
	FieldErrors map[string]string
	order       []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.order) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.order))
	for _, f := range e.order {
		parts = append(parts, f+": "+e.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field. The first message for a field wins.
func (e *ValidationError) Add(field, message string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string]string)
	}
	if _, exists := e.FieldErrors[field]; exists {
		return
	}
	e.FieldErrors[field] = message
	e.order = append(e.order, field)
}

// Merge appends other's failures after the current ones.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for _, f := range other.order {
		e.Add(f, other.FieldErrors[f])
	}
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.order) > 0
}

// Field returns the message for one field, or "".
func (e *ValidationError) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.FieldErrors[name]
}

// Fields returns the failing field keys in evaluation order.
func (e *ValidationError) Fields() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.order...)
}

// First returns the earliest failure.
func (e *ValidationError) First() (field, message string) {
	if !e.HasErrors() {
		return "", ""
	}
	field = e.order[0]
	return field, e.FieldErrors[field]
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("alert_type", func(fl validator.FieldLevel) bool {
		return AlertType(fl.Field().String()).Valid()
	})
	return v
}

// check runs struct validation and adds one message per failing field.
func (e *ValidationError) check(s interface{}) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		e.Add("form", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		e.Add(fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "alert_type":
		return "must be one of entry, exit, both, speed_limit"
	default:
		return "is invalid"
	}
}
