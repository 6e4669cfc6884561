package generator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ailens/domain-audit/internal/audit"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a payload against its schema tags and returns the list
// of failing field paths (empty when valid). The paths feed the repair
// prompt, so they use the JSON-ish struct namespace the model can map
// back to its own output.
func Validate(p *audit.Payload) []string {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Payload.")
		fields = append(fields, fmt.Sprintf("%s: failed %q constraint", path, constraint(fe)))
	}
	return fields
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
