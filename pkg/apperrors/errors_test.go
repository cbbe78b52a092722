package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := New(KindNotFound, "store.ApplyUpdate", "violation V-1 not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrTransport))
	assert.Equal(t, "store.ApplyUpdate: violation V-1 not found", err.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Wrap(KindTransport, "sheets.ReadRows", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, "sheets.ReadRows: connection reset by peer", err.Error())
	assert.Nil(t, Wrap(KindTransport, "op", nil))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"typed", New(KindRateLimited, "op", "slow down"), KindRateLimited},
		{"wrapped typed", fmt.Errorf("outer: %w", New(KindInvalid, "op", "bad")), KindInvalid},
		{"sentinel", fmt.Errorf("lookup: %w", ErrForbidden), KindForbidden},
		{"unclassified", errors.New("boom"), KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_IsRetryable(t *testing.T) {
	assert.True(t, New(KindRateLimited, "op", "x").IsRetryable())
	assert.True(t, New(KindTransport, "op", "x").IsRetryable())
	assert.False(t, New(KindNotFound, "op", "x").IsRetryable())
	assert.False(t, New(KindInvalid, "op", "x").IsRetryable())
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "field status: unknown value", MessageOf(New(KindInvalid, "op", "field status: unknown value")))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
	assert.Equal(t, "", MessageOf(nil))
}
