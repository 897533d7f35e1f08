package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorebill/productfetch/pkg/upstream"
)

func TestCoordinator_RetryRecovers(t *testing.T) {
	f := newFakeFetcher()
	f.script("X", transportFailure("X"), success("X"))

	c := NewCoordinator(NewDispatcher(f, 4), 3)
	outcomes, stats := c.Run(context.Background(), Normalize([]string{"X", "ok"}), testCreds, 4)

	assert.True(t, outcomes["X"].Success())
	assert.Equal(t, 2, f.attemptsFor("X"))
	assert.Equal(t, 1, f.attemptsFor("ok"), "successes must not be re-dispatched")
	assert.Equal(t, RoundStats{Rounds: 2, Retried: 1}, stats)
}

func TestCoordinator_RetryExhausted(t *testing.T) {
	f := newFakeFetcher()
	f.script("Y", transportFailure("Y"))

	c := NewCoordinator(NewDispatcher(f, 4), 3)
	outcomes, stats := c.Run(context.Background(), Normalize([]string{"Y"}), testCreds, 4)

	y := outcomes["Y"]
	require.NotNil(t, y.Err)
	assert.Equal(t, upstream.KindTransport, y.Err.Kind)
	assert.Equal(t, 4, f.attemptsFor("Y"), "one initial attempt plus three retries")
	assert.Equal(t, RoundStats{Rounds: 4, Retried: 3, Exhausted: 1}, stats)
}

func TestCoordinator_PanicNotRetried(t *testing.T) {
	f := newFakeFetcher()
	f.panicOn = "P"

	c := NewCoordinator(NewDispatcher(f, 4), 3)
	outcomes, stats := c.Run(context.Background(), Normalize([]string{"P", "ok"}), testCreds, 4)

	p := outcomes["P"]
	require.NotNil(t, p.Err)
	assert.Equal(t, upstream.KindTransport, p.Err.Kind)
	assert.Contains(t, p.Err.Detail, "fetcher exploded")
	assert.Equal(t, 1, f.attemptsFor("P"))
	assert.True(t, outcomes["ok"].Success())
	assert.Equal(t, RoundStats{Rounds: 1}, stats)
}

func TestCoordinator_NonRetriableKinds(t *testing.T) {
	tests := []struct {
		name    string
		outcome upstream.Outcome
	}{
		{"http status", statusFailure("n", 403)},
		{"parse", upstream.Failed("n", &upstream.FetchError{Kind: upstream.KindParse, Detail: "invalid JSON"})},
		{"shape", upstream.Failed("n", &upstream.FetchError{Kind: upstream.KindShape, Detail: "empty result"})},
		{"transport with detail", upstream.Failed("n", &upstream.FetchError{Kind: upstream.KindTransport, Detail: "connection reset"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.script("n", tt.outcome)

			c := NewCoordinator(NewDispatcher(f, 4), 3)
			outcomes, stats := c.Run(context.Background(), Normalize([]string{"n"}), testCreds, 4)

			assert.Equal(t, 1, f.attemptsFor("n"))
			assert.Equal(t, tt.outcome.Err, outcomes["n"].Err)
			assert.Equal(t, 1, stats.Rounds)
		})
	}
}

func TestCoordinator_RetryKeepsLatestOutcome(t *testing.T) {
	f := newFakeFetcher()
	f.script("Z", transportFailure("Z"), statusFailure("Z", 500))

	c := NewCoordinator(NewDispatcher(f, 4), 3)
	outcomes, stats := c.Run(context.Background(), Normalize([]string{"Z"}), testCreds, 4)

	require.NotNil(t, outcomes["Z"].Err)
	assert.Equal(t, upstream.KindHTTPStatus, outcomes["Z"].Err.Kind)
	assert.Equal(t, 2, f.attemptsFor("Z"))
	assert.Equal(t, 2, stats.Rounds)
}

func TestCoordinator_ZeroBudget(t *testing.T) {
	f := newFakeFetcher()
	f.script("Y", transportFailure("Y"))

	c := NewCoordinator(NewDispatcher(f, 4), 0)
	_, stats := c.Run(context.Background(), Normalize([]string{"Y"}), testCreds, 4)

	assert.Equal(t, 1, f.attemptsFor("Y"))
	assert.Equal(t, RoundStats{Rounds: 1, Exhausted: 1}, stats)
}

func TestCoordinator_NegativeBudgetClamped(t *testing.T) {
	c := NewCoordinator(NewDispatcher(newFakeFetcher(), 1), -2)
	assert.Equal(t, 0, c.maxRetries)
}

func TestRetriable_RequestOrder(t *testing.T) {
	outcomes := map[string]upstream.Outcome{
		"c": transportFailure("c"),
		"a": transportFailure("a"),
		"b": success("b"),
	}

	assert.Equal(t, []string{"c", "a"}, retriable([]string{"c", "b", "a"}, outcomes))
	assert.Empty(t, retriable([]string{"b"}, outcomes))
}
