package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesKindAndMessage(t *testing.T) {
	err := New(KindNotFound, "tenant %s not found", "t1")
	assert.Equal(t, "tenant t1 not found", err.Error())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUpstream, cause, "elasticsearch bulk failed")

	assert.Equal(t, "elasticsearch bulk failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	inner := New(KindRateLimited, "token quota exceeded")
	outer := fmt.Errorf("query failed: %w", inner)

	require.Equal(t, KindRateLimited, KindOf(outer))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUpstream, KindOf(errors.New("plain error")))
}
