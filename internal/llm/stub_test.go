package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_Defaults(t *testing.T) {
	s := &Stub{}
	ctx := context.Background()

	_, err := s.Classify(ctx, "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.SynthesizeQuery(ctx, "x", "", nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	summary, err := s.Summarize(ctx, []map[string]any{{"a": 1}, {"a": 2}}, "who", nil)
	require.NoError(t, err)
	assert.Equal(t, `Found 2 result(s) for "who".`, summary)

	assert.Equal(t, []string{"classify", "synthesize_query", "summarize"}, s.Calls())
}

func TestStub_Hooks(t *testing.T) {
	s := &Stub{
		ClassifyFn: func(context.Context, string) (*Classification, error) {
			return &Classification{Label: LabelPrecise}, nil
		},
	}
	got, err := s.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, got.IsFuzzy())
}

func TestStub_DelayHonoursCancellation(t *testing.T) {
	s := &Stub{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.ClassifyIntent(ctx, "x", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestStub_StreamCompletion(t *testing.T) {
	s := &Stub{}
	var tokens []string
	var terminal StreamEvent
	for ev := range s.StreamCompletion(context.Background(), "three little words") {
		if ev.Terminal() {
			terminal = ev
			continue
		}
		tokens = append(tokens, ev.Token)
	}
	assert.Equal(t, []string{"three ", "little ", "words"}, tokens)
	assert.True(t, terminal.Done)
}

func TestStub_StreamCompletion_CancelledWithoutReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := (&Stub{}).StreamCompletion(ctx, "never sent")

	// the producer finishes without anyone reading
	assert.Eventually(t, func() bool { return len(events) == 1 }, time.Second, 5*time.Millisecond)

	ev, ok := <-events
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, context.Canceled)
	_, ok = <-events
	assert.False(t, ok, "channel is closed after the terminal event")
}

func TestCollect_Interrupted(t *testing.T) {
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Token: "half"}
	close(ch)

	text, err := Collect(ch)
	assert.Equal(t, "half", text)
	assert.ErrorIs(t, err, ErrStreamInterrupted)
}
