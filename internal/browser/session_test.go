// internal/browser/session_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSelectorForCurrentGeneration(t *testing.T) {
	s := &Session{logger: zap.NewNop()}
	s.generation.Store(3)

	sel, err := s.selectorFor(Target{Ref: "3:14", Generation: 3})
	require.NoError(t, err)
	assert.Equal(t, `[data-wp-ref="3:14"]`, sel)
}

func TestSelectorForStaleGeneration(t *testing.T) {
	s := &Session{logger: zap.NewNop()}
	s.generation.Store(4)

	_, err := s.selectorFor(Target{Ref: "3:14", Generation: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaleRef))
}

func TestCombineContextCancelsOnEitherParent(t *testing.T) {
	t.Run("first parent", func(t *testing.T) {
		a, cancelA := context.WithCancel(context.Background())
		combined, cancel := combineContext(a, context.Background())
		defer cancel()

		cancelA()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe first parent cancellation")
		}
	})

	t.Run("second parent", func(t *testing.T) {
		b, cancelB := context.WithCancel(context.Background())
		combined, cancel := combineContext(context.Background(), b)
		defer cancel()

		cancelB()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe second parent cancellation")
		}
	})
}
