package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/soledexapp/soledex-server/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"rate limited is transient", fmt.Errorf("search: %w", ErrRateLimited), apperrors.ErrSourceTransient},
		{"server error is transient", ErrServer, apperrors.ErrSourceTransient},
		{"unknown is transient", errors.New("connection reset"), apperrors.ErrSourceTransient},
		{"bad request is fatal", ErrBadRequest, apperrors.ErrSourceFatal},
		{"not found stays query-local", ErrNotFound, ErrNotFound},
		{"bad payload is malformed", fmt.Errorf("decode: %w", ErrBadPayload), apperrors.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
			// The original error stays reachable for logging.
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyNotFoundIsNeitherFatalNorTransient(t *testing.T) {
	got := Classify(fmt.Errorf("search: %w", ErrNotFound))
	assert.ErrorIs(t, got, ErrNotFound)
	assert.NotErrorIs(t, got, apperrors.ErrSourceFatal)
	assert.NotErrorIs(t, got, apperrors.ErrSourceTransient)
}

func TestClassifyKeepsCancellation(t *testing.T) {
	assert.ErrorIs(t, Classify(context.Canceled), context.Canceled)
	assert.NotErrorIs(t, Classify(context.Canceled), apperrors.ErrSourceTransient)
}
