// Package validation defines the contract page validators satisfy and the
// error model rendered next to form fields.
package validation

// Error is a single field-level problem.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Href is the anchor of the field's inline error.
func (e Error) Href() string {
	return "#" + e.Field + "-error"
}

// Result is the outcome of validating one page submission. An empty result
// means the submission is valid.
type Result struct {
	Errors []Error `json:"errors"`
}

func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// ErrorForField returns the first error recorded against field.
func (r Result) ErrorForField(field string) (Error, bool) {
	for _, err := range r.Errors {
		if err.Field == field {
			return err, true
		}
	}
	return Error{}, false
}

// MessageFor returns the field's error message, or "" when it has none.
func (r Result) MessageFor(field string) string {
	err, _ := r.ErrorForField(field)
	return err.Message
}

// Add appends an error unless the field already has one.
func (r *Result) Add(field, message string) {
	if _, exists := r.ErrorForField(field); exists {
		return
	}
	r.Errors = append(r.Errors, Error{Field: field, Message: message})
}

type Validator interface {
	Validate(form any) Result
}

type Func func(form any) Result

func (f Func) Validate(form any) Result {
	return f(form)
}
