package validate

import (
	"fmt"
	"sort"
	"strconv"

	"gatekeeper/internal/models"
)

// Validator holds the compiled rule set and checks request documents
// against it. It is immutable after construction and safe for concurrent
// use.
type Validator struct {
	rules map[string]*Rule
}

// NewValidator compiles the configured rules. Invalid patterns or unknown
// constraint types fail construction rather than being discovered per
// request.
func NewValidator(cfg models.ValidationConfig) (*Validator, error) {
	v := &Validator{rules: make(map[string]*Rule, len(cfg.Rules))}

	for _, rc := range cfg.Rules {
		body, err := compileSchema(rc.Body)
		if err != nil {
			return nil, fmt.Errorf("rule %s %s: body: %w", rc.Method, rc.Path, err)
		}
		query, err := compileSchema(rc.Query)
		if err != nil {
			return nil, fmt.Errorf("rule %s %s: query: %w", rc.Method, rc.Path, err)
		}

		rule := &Rule{
			Method: rc.Method,
			Path:   NormalizePath(rc.Path),
			Body:   body,
			Query:  query,
		}
		v.rules[ruleKey(rule.Method, rule.Path)] = rule
	}
	return v, nil
}

// Validate checks the request against the rule for its (method, normalized
// path). Requests with no matching rule pass. All violations are collected
// in one pass; a nil return means the request conforms.
func (v *Validator) Validate(method, path string, body, query map[string]any) []string {
	rule, ok := v.rules[ruleKey(method, NormalizePath(path))]
	if !ok {
		return nil
	}

	var msgs []string
	if rule.Body != nil {
		msgs = append(msgs, checkDocument(rule.Body, body)...)
	}
	if rule.Query != nil {
		msgs = append(msgs, checkDocument(rule.Query, coerceQuery(rule.Query, query))...)
	}
	return msgs
}

// coerceQuery converts query values to numbers only where the schema
// declares a number constraint. Query parameters always arrive as strings;
// the declared type, not the value's shape, decides how to read them, so a
// string-constrained parameter holding digits stays a string.
func coerceQuery(schema *Schema, doc map[string]any) map[string]any {
	if len(doc) == 0 {
		return doc
	}

	out := doc
	copied := false
	for field, constraint := range schema.Properties {
		if _, isNumber := constraint.(NumberConstraint); !isNumber {
			continue
		}
		s, isString := doc[field].(string)
		if !isString {
			continue
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// Left as a string so the number constraint reports the mismatch.
			continue
		}
		if !copied {
			out = make(map[string]any, len(doc))
			for k, v := range doc {
				out[k] = v
			}
			copied = true
		}
		out[field] = n
	}
	return out
}

// checkDocument applies one schema to one document. Required fields are
// reported once each; constraints only run on fields that are actually
// present. Fields the schema does not mention are ignored.
func checkDocument(schema *Schema, doc map[string]any) []string {
	var msgs []string

	for _, field := range schema.Required {
		if isMissing(doc, field) {
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		}
	}

	fields := make([]string, 0, len(schema.Properties))
	for field := range schema.Properties {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if isMissing(doc, field) {
			continue
		}
		msgs = append(msgs, schema.Properties[field].check(field, doc[field])...)
	}
	return msgs
}

// isMissing treats absent keys, explicit nulls, and empty strings alike:
// none of them satisfies a required field, and none is worth running
// constraints against.
func isMissing(doc map[string]any, field string) bool {
	value, ok := doc[field]
	if !ok || value == nil {
		return true
	}
	if s, isStr := value.(string); isStr && s == "" {
		return true
	}
	return false
}
