package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks request DTOs declared with `validate` struct tags. On top
// of the built-in tags it understands chirp_username, chirp_password and
// chirp_email, which apply the account rules in this package.
type Validator struct {
	validate *validator.Validate
	policy   PasswordPolicy
}

// Option configures a Validator.
type Option func(*Validator)

// WithPasswordPolicy sets the rules behind chirp_password. The default is
// PasswordPolicyBasic.
func WithPasswordPolicy(p PasswordPolicy) Option {
	return func(v *Validator) {
		if p != "" {
			v.policy = p
		}
	}
}

// New returns a Validator with the account rules registered.
func New(opts ...Option) *Validator {
	out := &Validator{policy: PasswordPolicyBasic}
	for _, opt := range opts {
		opt(out)
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "chirp_username", ValidateUsername)
	mustRegister(v, "chirp_password", out.policy.Check)
	mustRegister(v, "chirp_email", ValidateEmail)

	out.validate = v
	return out
}

func mustRegister(v *validator.Validate, tag string, rule func(string) error) {
	if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return rule(fl.Field().String()) == nil
	}); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Struct validates s and returns a single human-readable error for the first
// failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	return errors.New(v.describe(fieldErrs[0]))
}

func (v *Validator) describe(fe validator.FieldError) string {
	field := fe.Field()
	value := fe.Value()
	str, _ := value.(string)

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "chirp_username":
		return ValidateUsername(str).Error()
	case "chirp_password":
		return v.policy.Check(str).Error()
	case "chirp_email":
		return ValidateEmail(str).Error()
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
