package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	companyNumberPattern    = regexp.MustCompile(`^[A-Z0-9]{8}$`)
	penaltyReferencePattern = regexp.MustCompile(`^([A-Z][0-9]{7}|PEN[0-9][A-Z][0-9]{7})$`)
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("companynumber", func(fl validator.FieldLevel) bool {
		return companyNumberPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("penaltyref", func(fl validator.FieldLevel) bool {
		return penaltyReferencePattern.MatchString(fl.Field().String())
	})
	return v
}

// Check adds errors struct tags cannot express, such as cross-field dates.
type Check func(form any, result *Result)

// TagValidator validates `validate` struct tags and translates each failure
// through a message table keyed "field.tag", falling back to "field".
type TagValidator struct {
	messages map[string]string
	checks   []Check
}

func NewTagValidator(messages map[string]string, checks ...Check) *TagValidator {
	return &TagValidator{messages: messages, checks: checks}
}

func (v *TagValidator) Validate(form any) Result {
	var result Result
	if err := structValidator.Struct(form); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			result.Add("form", "Enter your answer")
			return result
		}
		for _, fe := range fieldErrors {
			result.Add(fe.Field(), v.message(fe.Field(), fe.Tag()))
		}
	}
	for _, check := range v.checks {
		check(form, &result)
	}
	return result
}

func (v *TagValidator) message(field, tag string) string {
	if msg, ok := v.messages[field+"."+tag]; ok {
		return msg
	}
	if msg, ok := v.messages[field]; ok {
		return msg
	}
	return "Enter a valid value"
}
