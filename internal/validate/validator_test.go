package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }

func newStoryValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(models.ValidationConfig{
		Enabled: true,
		Rules: []models.RuleConfig{
			{
				Method: "POST",
				Path:   "/stories/generate",
				Body: &models.SchemaConfig{
					Required: []string{"prompt", "grade_level"},
					Properties: map[string]models.ConstraintConfig{
						"prompt": {
							Type:      "string",
							MinLength: intPtr(10),
							MaxLength: intPtr(2000),
						},
						"grade_level": {
							Type: "string",
							Enum: []string{"k", "1", "2", "3", "4", "5"},
						},
						"page_count": {
							Type:    "number",
							Minimum: floatPtr(1),
							Maximum: floatPtr(20),
						},
						"themes": {
							Type:      "array",
							MinLength: intPtr(1),
						},
					},
				},
			},
			{
				Method: "POST",
				Path:   "/stories/:id/submit",
				Body: &models.SchemaConfig{
					Required: []string{"answer"},
					Properties: map[string]models.ConstraintConfig{
						"answer": {Type: "string", MaxLength: intPtr(500)},
					},
				},
			},
			{
				Method: "GET",
				Path:   "/stories",
				Query: &models.SchemaConfig{
					Properties: map[string]models.ConstraintConfig{
						"limit": {Type: "number", Minimum: floatPtr(1), Maximum: floatPtr(100)},
						"sort":  {Type: "string", Enum: []string{"newest", "oldest"}},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	return v
}

func TestValidator_ValidBodyPasses(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("POST", "/stories/generate", map[string]any{
		"prompt":      "a story about a friendly dragon",
		"grade_level": "3",
		"page_count":  float64(8),
	}, nil)
	assert.Empty(t, msgs)
}

func TestValidator_MissingRequiredFieldsReportedOnceEach(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("POST", "/stories/generate", map[string]any{}, nil)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs, "prompt is required")
	assert.Contains(t, msgs, "grade_level is required")
}

func TestValidator_NullAndEmptyStringCountAsMissing(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("POST", "/stories/generate", map[string]any{
		"prompt":      "",
		"grade_level": nil,
	}, nil)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs, "prompt is required")
	assert.Contains(t, msgs, "grade_level is required")
}

func TestValidator_TwoViolationsOnOneField(t *testing.T) {
	v, err := NewValidator(models.ValidationConfig{
		Rules: []models.RuleConfig{{
			Method: "POST",
			Path:   "/things",
			Body: &models.SchemaConfig{
				Properties: map[string]models.ConstraintConfig{
					"code": {
						Type:      "string",
						MinLength: intPtr(10),
						Pattern:   `^[a-z]+$`,
					},
				},
			},
		}},
	})
	require.NoError(t, err)

	msgs := v.Validate("POST", "/things", map[string]any{"code": "AB"}, nil)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs, "code must be at least 10 characters")
	assert.Contains(t, msgs, "code has an invalid format")
}

func TestValidator_AllViolationsAccumulated(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("POST", "/stories/generate", map[string]any{
		"prompt":      "too short",
		"grade_level": "12",
		"page_count":  float64(50),
		"themes":      []any{},
	}, nil)
	assert.Len(t, msgs, 4)
}

func TestValidator_TypeMismatchIsViolation(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("POST", "/stories/generate", map[string]any{
		"prompt":      "a story about a friendly dragon",
		"grade_level": "3",
		"page_count":  "eight",
		"themes":      "dragons",
	}, nil)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs, "page_count must be a number")
	assert.Contains(t, msgs, "themes must be an array")
}

func TestValidator_EnumAndRange(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("POST", "/stories/generate", map[string]any{
		"prompt":      "a story about a friendly dragon",
		"grade_level": "college",
	}, nil)
	require.Len(t, msgs, 1)
	assert.Equal(t, "grade_level must be one of: k, 1, 2, 3, 4, 5", msgs[0])
}

func TestValidator_QueryStringsCoercedByDeclaredType(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("GET", "/stories", nil, map[string]any{
		"limit": "25",
		"sort":  "newest",
	})
	assert.Nil(t, msgs)

	msgs = v.Validate("GET", "/stories", nil, map[string]any{"limit": "500"})
	require.Len(t, msgs, 1)
	assert.Equal(t, "limit must be at most 100", msgs[0])

	msgs = v.Validate("GET", "/stories", nil, map[string]any{"limit": "lots"})
	require.Len(t, msgs, 1)
	assert.Equal(t, "limit must be a number", msgs[0])
}

func TestValidator_DigitQueryValueStaysStringForStringConstraint(t *testing.T) {
	v, err := NewValidator(models.ValidationConfig{
		Rules: []models.RuleConfig{{
			Method: "GET",
			Path:   "/stories",
			Query: &models.SchemaConfig{
				Properties: map[string]models.ConstraintConfig{
					"q": {Type: "string", MinLength: intPtr(1)},
				},
			},
		}},
	})
	require.NoError(t, err)

	assert.Nil(t, v.Validate("GET", "/stories", nil, map[string]any{"q": "42"}),
		"the declared type decides, not the value's shape")
}

func TestValidator_QuerySchema(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("GET", "/stories", nil, map[string]any{
		"limit": float64(500),
		"sort":  "loudest",
	})
	assert.Len(t, msgs, 2)

	msgs = v.Validate("GET", "/stories", nil, map[string]any{
		"limit": float64(25),
		"sort":  "newest",
	})
	assert.Empty(t, msgs)
}

func TestValidator_UnknownFieldsIgnored(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("POST", "/stories/generate", map[string]any{
		"prompt":      "a story about a friendly dragon",
		"grade_level": "3",
		"client_hint": 12345,
	}, nil)
	assert.Empty(t, msgs)
}

func TestValidator_NoRuleMeansPass(t *testing.T) {
	v := newStoryValidator(t)

	msgs := v.Validate("DELETE", "/stories/generate", map[string]any{}, nil)
	assert.Empty(t, msgs)
	msgs = v.Validate("POST", "/unmapped", map[string]any{"x": 1}, nil)
	assert.Empty(t, msgs)
}

func TestValidator_PathNormalizationMatchesIDShapes(t *testing.T) {
	v := newStoryValidator(t)

	paths := []string{
		"/stories/3fa85f64-5717-4562-b3fc-2c963f66afa6/submit",
		"/stories/42/submit",
		"/stories/:id/submit",
	}
	for _, path := range paths {
		msgs := v.Validate("POST", path, map[string]any{}, nil)
		require.Len(t, msgs, 1, "path %s should hit the same rule", path)
		assert.Equal(t, "answer is required", msgs[0])
	}
}

func TestValidator_InvalidPatternFailsConstruction(t *testing.T) {
	_, err := NewValidator(models.ValidationConfig{
		Rules: []models.RuleConfig{{
			Method: "POST",
			Path:   "/x",
			Body: &models.SchemaConfig{
				Properties: map[string]models.ConstraintConfig{
					"f": {Type: "string", Pattern: `([`},
				},
			},
		}},
	})
	assert.Error(t, err)
}

func TestValidator_UnknownConstraintTypeFailsConstruction(t *testing.T) {
	_, err := NewValidator(models.ValidationConfig{
		Rules: []models.RuleConfig{{
			Method: "POST",
			Path:   "/x",
			Body: &models.SchemaConfig{
				Properties: map[string]models.ConstraintConfig{
					"f": {Type: "boolean"},
				},
			},
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown constraint type")
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/stories/42":        "/stories/:id",
		"/stories/42/pages/7": "/stories/:id/pages/:id",
		"/stories/3fa85f64-5717-4562-b3fc-2c963f66afa6": "/stories/:id",
		"/stories/generate": "/stories/generate",
		"/stories/v2/list":  "/stories/v2/list",
		"/":                 "/",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePath(in), "input %q", in)
	}
}
