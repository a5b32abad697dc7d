package services

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/render"
)

const templateSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 200},
    "theme": {"type": "string", "maxLength": 32},
    "elements": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "visible": {"type": ["boolean", "null"]},
          "order": {"type": ["integer", "null"]},
          "columns": {"type": ["object", "null"], "additionalProperties": {"type": "boolean"}}
        }
      }
    }
  }
}`

var templateSchemaLoader = gojsonschema.NewStringLoader(templateSchema)

// TemplateValidationError lists schema violations of a builder payload.
type TemplateValidationError struct {
	Problems []string
}

func (e *TemplateValidationError) Error() string {
	return "invalid template: " + strings.Join(e.Problems, "; ")
}

func (e *TemplateValidationError) Unwrap() error { return ErrTemplateInvalid }

// ValidateTemplate checks a template against the builder schema. Unknown
// element types pass validation and are returned as warnings.
func ValidateTemplate(tpl *models.QuotationTemplate) ([]string, error) {
	if strings.TrimSpace(tpl.Name) == "" {
		return nil, &TemplateValidationError{Problems: []string{"name: is required"}}
	}
	result, err := gojsonschema.Validate(templateSchemaLoader, gojsonschema.NewGoLoader(tpl))
	if err != nil {
		return nil, fmt.Errorf("validate template: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &TemplateValidationError{Problems: problems}
	}

	var warnings []string
	for i, el := range tpl.Elements {
		if render.ParseKind(el.Type) == render.KindUnknown {
			warnings = append(warnings, fmt.Sprintf("element %d: unknown type %q will render as a placeholder", i, el.Type))
		}
	}
	return warnings, nil
}
