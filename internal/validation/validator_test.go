package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/soledexapp/soledex-server/internal/errors"
	"github.com/soledexapp/soledex-server/internal/validation"
)

type testSettings struct {
	Mode    string `json:"mode" validate:"required,oneof=local drive none"`
	Workers int    `json:"workers" validate:"gte=1,lte=64"`
	BaseURL string `json:"base_url" validate:"omitempty,url"`
}

func TestValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testSettings{
		Mode:    "local",
		Workers: 4,
		BaseURL: "https://api.example.com",
	})
	assert.NoError(t, err)
}

func TestValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		settings  testSettings
		wantField string
	}{
		{
			name:      "missing required field",
			settings:  testSettings{Workers: 4},
			wantField: "mode",
		},
		{
			name:      "value outside enum",
			settings:  testSettings{Mode: "s3", Workers: 4},
			wantField: "mode",
		},
		{
			name:      "workers below floor",
			settings:  testSettings{Mode: "local", Workers: 0},
			wantField: "workers",
		},
		{
			name:      "workers above ceiling",
			settings:  testSettings{Mode: "local", Workers: 100},
			wantField: "workers",
		},
		{
			name:      "bad url",
			settings:  testSettings{Mode: "local", Workers: 4, BaseURL: "not a url"},
			wantField: "base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.settings)
			assert.Error(t, err)

			var appErr *apperrors.Error
			if assert.True(t, errors.As(err, &appErr)) {
				assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
				assert.Contains(t, appErr.Details, tt.wantField)
			}
		})
	}
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(testSettings{Workers: 4})
	assert.Error(t, err)

	var appErr *apperrors.Error
	assert.True(t, errors.As(err, &appErr))
	// JSON tag name "mode", not struct field name "Mode".
	assert.Contains(t, appErr.Details, "mode")
	assert.NotContains(t, appErr.Details, "Mode")
}
