package validator

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	Engine() *playground.Validate
}

type validator struct {
	v *playground.Validate
}

// New returns a validator with the project's custom tags registered.
func New() Validator {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	Register(v)
	return &validator{v: v}
}

// Register installs the custom tags on an existing engine, e.g. gin's.
func Register(v *playground.Validate) {
	_ = v.RegisterValidation("rfc3339", func(fl playground.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	})
}

func (v *validator) Engine() *playground.Validate {
	return v.v
}

func (v *validator) Validate(obj interface{}) error {
	if err := v.v.Struct(obj); err != nil {
		return describe(err)
	}
	return nil
}

// FieldError is a single failed rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Errors is returned when one or more rules fail.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fmt.Sprintf("%s failed on %q", fe.Field, fe.Rule))
	}
	return strings.Join(parts, "; ")
}

func describe(err error) error {
	errs, ok := err.(playground.ValidationErrors)
	if !ok {
		return err
	}
	out := make(Errors, 0, len(errs))
	for _, fe := range errs {
		out = append(out, FieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	return out
}
