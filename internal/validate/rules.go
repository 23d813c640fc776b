// Package validate rejects structurally invalid requests before they reach
// business handlers. Rules are declarative, data-driven configuration: one
// rule per (method, route pattern), with per-field constraints modeled as a
// closed set of variants so dispatch is exhaustive rather than reflective.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"gatekeeper/internal/models"
)

// Constraint is one field-level check. The implementations below are the
// complete set; adding a kind means adding a type here and a case in the
// compiler.
type Constraint interface {
	// check returns one message per violation. A nil slice means the value
	// conforms.
	check(field string, value any) []string
}

// StringConstraint validates string fields.
type StringConstraint struct {
	MinLength *int
	MaxLength *int
	Enum      []string
	Pattern   *regexp.Regexp
}

func (c StringConstraint) check(field string, value any) []string {
	s, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s must be a string", field)}
	}

	var msgs []string
	if c.MinLength != nil && len(s) < *c.MinLength {
		msgs = append(msgs, fmt.Sprintf("%s must be at least %d characters", field, *c.MinLength))
	}
	if c.MaxLength != nil && len(s) > *c.MaxLength {
		msgs = append(msgs, fmt.Sprintf("%s must be at most %d characters", field, *c.MaxLength))
	}
	if len(c.Enum) > 0 && !contains(c.Enum, s) {
		msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.Join(c.Enum, ", ")))
	}
	if c.Pattern != nil && !c.Pattern.MatchString(s) {
		msgs = append(msgs, fmt.Sprintf("%s has an invalid format", field))
	}
	return msgs
}

// NumberConstraint validates numeric fields. JSON bodies decode numbers as
// float64; integer-typed values from other descriptor sources are accepted
// too.
type NumberConstraint struct {
	Minimum *float64
	Maximum *float64
}

func (c NumberConstraint) check(field string, value any) []string {
	n, ok := asNumber(value)
	if !ok {
		return []string{fmt.Sprintf("%s must be a number", field)}
	}

	var msgs []string
	if c.Minimum != nil && n < *c.Minimum {
		msgs = append(msgs, fmt.Sprintf("%s must be at least %g", field, *c.Minimum))
	}
	if c.Maximum != nil && n > *c.Maximum {
		msgs = append(msgs, fmt.Sprintf("%s must be at most %g", field, *c.Maximum))
	}
	return msgs
}

// ArrayConstraint validates array fields.
type ArrayConstraint struct {
	MinLength *int
}

func (c ArrayConstraint) check(field string, value any) []string {
	arr, ok := value.([]any)
	if !ok {
		return []string{fmt.Sprintf("%s must be an array", field)}
	}

	if c.MinLength != nil && len(arr) < *c.MinLength {
		return []string{fmt.Sprintf("%s must have at least %d items", field, *c.MinLength)}
	}
	return nil
}

// Schema declares required fields plus per-field constraints for a body or
// query document.
type Schema struct {
	Required   []string
	Properties map[string]Constraint
}

// Rule is the compiled form of one validation rule. Path is stored
// normalized so lookup and configuration agree on route shape.
type Rule struct {
	Method string
	Path   string
	Body   *Schema
	Query  *Schema
}

// compileSchema turns the YAML constraint bags into closed variants.
func compileSchema(cfg *models.SchemaConfig) (*Schema, error) {
	if cfg == nil {
		return nil, nil
	}

	schema := &Schema{
		Required:   cfg.Required,
		Properties: make(map[string]Constraint, len(cfg.Properties)),
	}

	for field, c := range cfg.Properties {
		constraint, err := compileConstraint(c)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		schema.Properties[field] = constraint
	}
	return schema, nil
}

func compileConstraint(cfg models.ConstraintConfig) (Constraint, error) {
	switch cfg.Type {
	case "string":
		sc := StringConstraint{
			MinLength: cfg.MinLength,
			MaxLength: cfg.MaxLength,
			Enum:      cfg.Enum,
		}
		if cfg.Pattern != "" {
			re, err := regexp.Compile(cfg.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", cfg.Pattern, err)
			}
			sc.Pattern = re
		}
		return sc, nil
	case "number":
		return NumberConstraint{Minimum: cfg.Minimum, Maximum: cfg.Maximum}, nil
	case "array":
		return ArrayConstraint{MinLength: cfg.MinLength}, nil
	default:
		return nil, fmt.Errorf("unknown constraint type: %s", cfg.Type)
	}
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
