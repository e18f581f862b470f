package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("write: %w", Validation("insert", "content is required"))

	assert.True(t, Is(err, KindValidation))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "write: insert: content is required", err.Error())
}

func TestWrappedCauseIsReachable(t *testing.T) {
	err := ExternalTimeout("cdp call", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrExternalTimeout))
	assert.Equal(t, KindExternalTimeout, KindOf(err))
}

func TestUnclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindNotFound))
	assert.Equal(t, "storage unavailable", KindStorageUnavailable.String())
}
