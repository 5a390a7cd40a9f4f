package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conceptRequest struct {
	Prompt string `json:"prompt" validate:"required,min=3,max=50"`
	Size   string `json:"image_size,omitempty" validate:"omitempty,imagesize"`
	Style  string `json:"image_style,omitempty" validate:"omitempty,oneof=vivid natural"`
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		req := conceptRequest{Prompt: "electric roadster", Size: "1792x1024", Style: "vivid", Limit: 10}
		assert.NoError(t, ValidateStruct(&req))
	})

	t.Run("optional fields may be empty", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(&conceptRequest{Prompt: "van"}))
	})

	t.Run("missing prompt is reported by json name", func(t *testing.T) {
		err := ValidateStruct(&conceptRequest{})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "prompt is required", fields["prompt"])
	})

	t.Run("prompt too short", func(t *testing.T) {
		err := ValidateStruct(&conceptRequest{Prompt: "ab"})
		fields := GetValidationFields(err)
		assert.Equal(t, "prompt must be at least 3", fields["prompt"])
	})

	t.Run("bad image size", func(t *testing.T) {
		for _, size := range []string{"1024", "x1024", "0x10", "big", "1024x"} {
			err := ValidateStruct(&conceptRequest{Prompt: "van", Size: size})
			fields := GetValidationFields(err)
			assert.Contains(t, fields, "image_size", size)
		}
	})

	t.Run("style outside allowed set", func(t *testing.T) {
		err := ValidateStruct(&conceptRequest{Prompt: "van", Style: "noir"})
		fields := GetValidationFields(err)
		assert.Equal(t, "image_style must be one of: vivid natural", fields["image_style"])
	})

	t.Run("range checks", func(t *testing.T) {
		err := ValidateStruct(&conceptRequest{Prompt: "van", Limit: 101})
		fields := GetValidationFields(err)
		assert.Equal(t, "limit must be less than or equal to 100", fields["limit"])
	})
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Error(t, ValidateUUID("not-a-uuid"))
	assert.Error(t, ValidateUUID(""))
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Message: "Validation failed"}
	assert.Equal(t, "Validation failed", err.Error())
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(&ValidationError{}))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}

func TestGetValidationFields(t *testing.T) {
	fields := map[string]string{"prompt": "prompt is required"}
	assert.Equal(t, fields, GetValidationFields(&ValidationError{Fields: fields}))
	assert.Nil(t, GetValidationFields(errors.New("plain")))
}
