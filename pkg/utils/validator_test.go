package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Title string `json:"title" validate:"required,max=5"`
	Email string `json:"email" validate:"omitempty,email"`
	Count int    `json:"count" validate:"gt=0"`
}

func TestValidator_Struct(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Struct(sampleInput{Title: "ok", Count: 1}))

	err := v.Struct(sampleInput{Title: "too long", Email: "nope", Count: 0})
	require.Error(t, err)

	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "must be at most 5 characters", fields["title"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be greater than 0", fields["count"])
	assert.Equal(t, "count: must be greater than 0; email: must be a valid email address; title: must be at most 5 characters", err.Error())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("  hello\x00 world\x7f \n"))
}
