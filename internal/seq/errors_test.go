package seq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := InvalidArgument("flatten", "depth %d is negative", -2)
	assert.Equal(t, "INVALID_ARGUMENT: flatten: depth -2 is negative", err.Error())

	bare := &Error{Code: ErrCodeResourceExhausted, Message: "too big"}
	assert.Equal(t, "RESOURCE_EXHAUSTED: too big", bare.Error())
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ResourceExhausted("splice", "max_length", 10, 5))

	assert.True(t, errors.Is(err, ErrResourceExhausted))
	assert.False(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(err, &Error{Code: ErrCodeResourceExhausted, Op: "splice"}))
	assert.False(t, errors.Is(err, &Error{Code: ErrCodeResourceExhausted, Op: "flatten"}))
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"invalid", InvalidArgument("take", "bad"), ErrCodeInvalidArgument},
		{"exhausted", ResourceExhausted("flatten", "max_depth", 3, 2), ErrCodeResourceExhausted},
		{"mismatch", CapabilityMismatch("union", "a", "b"), ErrCodeCapabilityMismatch},
		{"foreign", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.code == ErrCodeInvalidArgument, IsInvalidArgument(tt.err))
			assert.Equal(t, tt.code == ErrCodeResourceExhausted, IsResourceExhausted(tt.err))
			assert.Equal(t, tt.code == ErrCodeCapabilityMismatch, IsCapabilityMismatch(tt.err))
		})
	}
}

func TestResourceExhaustedDetails(t *testing.T) {
	err := ResourceExhausted("splice", "max_length", 10, 5)
	assert.Equal(t, "max_length", err.Details["limit"])
	assert.Equal(t, "10", err.Details["got"])
	assert.Equal(t, "5", err.Details["max"])
}

func TestLimits(t *testing.T) {
	l := Limits{MaxLength: 3, MaxDepth: 2}

	assert.NoError(t, l.CheckLength("x", 3))
	assert.True(t, IsResourceExhausted(l.CheckLength("x", 4)))
	assert.NoError(t, l.CheckDepth("x", 2))
	assert.True(t, IsResourceExhausted(l.CheckDepth("x", 3)))

	assert.NoError(t, Unlimited.CheckLength("x", 1<<40))
	assert.NoError(t, Unlimited.CheckDepth("x", 1<<20))
}

func TestBudget(t *testing.T) {
	b := Limits{MaxLength: 5}.NewBudget("toArray")

	require.NoError(t, b.Add(3))
	require.NoError(t, b.Add(0))
	require.NoError(t, b.Add(-4))
	require.NoError(t, b.Add(2))
	assert.Equal(t, 5, b.Current())

	err := b.Add(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &Error{Code: ErrCodeResourceExhausted, Op: "toArray"}))
}
