// Package validation wraps go-playground/validator so that failures come back
// keyed by JSON field name with messages an operator can read.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var ErrInvalid = errors.New("validation failed")

// Error maps JSON field names to their messages.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e.Messages(), "; "))
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Add records msg for field.
func (e *Error) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Messages flattens the error to "field: message" lines sorted by field.
func (e *Error) Messages() []string {
	fields := lo.Keys(e.Fields)
	slices.Sort(fields)
	return lo.FlatMap(fields, func(f string, _ int) []string {
		return lo.Map(e.Fields[f], func(m string, _ int) string {
			return f + ": " + m
		})
	})
}

// Validator validates request structs.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports JSON field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// RegisterStructRule adds a cross-field rule for the type of each of types.
// Rules report failures with StructLevel.ReportError using the JSON name.
func (v *Validator) RegisterStructRule(fn validator.StructLevelFunc, types ...interface{}) {
	v.v.RegisterStructValidation(fn, types...)
}

// Struct validates s. Failures are returned as *Error.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{}
	for _, fe := range verrs {
		out.Add(fe.Field(), Message(fe))
	}
	return out
}

// Message renders a single field error.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_for_mode":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "hostname_port":
		return "must be host:port"
	case "ltefield_json":
		return "must not be greater than " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
