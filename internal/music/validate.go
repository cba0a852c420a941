package music

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags on any model value and returns a readable
// error listing every failing field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Namespace())
	case "min":
		return fmt.Sprintf("field '%s' must have at least %s entries", fe.Namespace(), fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must have at most %s entries", fe.Namespace(), fe.Param())
	case "len":
		return fmt.Sprintf("field '%s' must have exactly %s entries", fe.Namespace(), fe.Param())
	case "unique":
		return fmt.Sprintf("field '%s' must not repeat %s values", fe.Namespace(), fe.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be greater than or equal to %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag())
	}
}
