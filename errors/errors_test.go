package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	original := New("allocation failed")
	wrapped := Wrapf(original, "run %d", 7)

	assert.Equal(t, "run 7: allocation failed", wrapped.Error())
	assert.True(t, Is(wrapped, original))
}

func TestMarkPreservesMessage(t *testing.T) {
	reference := New("reference")
	native := New("perplexity too large for the number of data points")

	marked := Mark(native, reference)

	assert.Equal(t, native.Error(), marked.Error())
	assert.True(t, Is(marked, reference))
	assert.True(t, Is(marked, native))
}

type codeError struct {
	code int
}

func (e *codeError) Error() string { return fmt.Sprintf("code %d", e.code) }

func TestAsThroughMark(t *testing.T) {
	original := &codeError{code: 3}
	marked := Mark(original, ErrServiceUnavailable)

	var target *codeError
	require.True(t, As(marked, &target))
	assert.Equal(t, 3, target.code)
	assert.True(t, IsServiceUnavailableError(marked))
}

func TestHints(t *testing.T) {
	err := WithHintf(New("perplexity out of range"), "use a perplexity below %d", 9)

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "use a perplexity below 9", hints[0])
}

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		notFound    bool
		invalid     bool
		unavailable bool
	}{
		{name: "nil", err: nil},
		{name: "not found", err: NewNotFoundError("run %s", "abc"), notFound: true},
		{name: "invalid", err: NewInvalidRequestError("missing %s", "matrix"), invalid: true},
		{name: "unavailable", err: NewUnavailableError("backend %s", "native"), unavailable: true},
		{name: "plain", err: New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFoundError(tt.err))
			assert.Equal(t, tt.invalid, IsInvalidRequestError(tt.err))
			assert.Equal(t, tt.unavailable, IsServiceUnavailableError(tt.err))
		})
	}
}

func TestNewNotFoundErrorMessage(t *testing.T) {
	err := NewNotFoundError("run %s", "abc")
	assert.Contains(t, err.Error(), "run abc")
	assert.Contains(t, err.Error(), "not found")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, Mark(nil, ErrNotFound))
}

func ExampleMark() {
	err := Mark(New("theta must be in [0,1]"), ErrInvalidRequest)
	fmt.Println(err, Is(err, ErrInvalidRequest))
	// Output: theta must be in [0,1] true
}
