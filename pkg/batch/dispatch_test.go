package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorebill/productfetch/pkg/upstream"
)

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%03d", i)
	}
	return ids
}

func TestDispatch_OneOutcomePerIdentifier(t *testing.T) {
	f := newFakeFetcher()
	f.script("id-003", statusFailure("id-003", 403))

	d := NewDispatcher(f, 4)
	ids := makeIDs(20)

	outcomes := d.Dispatch(context.Background(), ids, testCreds, 0)

	require.Len(t, outcomes, len(ids))
	for _, id := range ids {
		o, ok := outcomes[id]
		require.True(t, ok, "missing outcome for %s", id)
		assert.Equal(t, id, o.Identifier)
		assert.Equal(t, 1, f.attemptsFor(id))
	}
	assert.False(t, outcomes["id-003"].Success())
	assert.True(t, outcomes["id-004"].Success())
}

func TestDispatch_ConcurrencyBound(t *testing.T) {
	tests := []struct {
		name  string
		ids   int
		limit int
		want  int
		exact bool
	}{
		{"limit below batch size", 40, 5, 5, true},
		{"limit above batch size", 3, 50, 3, false},
		{"limit of one serializes", 6, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.delay = 20 * time.Millisecond

			d := NewDispatcher(f, 100)
			outcomes := d.Dispatch(context.Background(), makeIDs(tt.ids), testCreds, tt.limit)

			assert.Len(t, outcomes, tt.ids)
			if tt.exact {
				assert.Equal(t, tt.want, f.peakInflight())
			} else {
				assert.LessOrEqual(t, f.peakInflight(), tt.want)
			}
			assert.Equal(t, tt.ids, f.totalAttempts())
		})
	}
}

func TestDispatch_DefaultLimit(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 10 * time.Millisecond

	d := NewDispatcher(f, 2)
	d.Dispatch(context.Background(), makeIDs(10), testCreds, 0)

	assert.LessOrEqual(t, f.peakInflight(), 2)
}

func TestDispatch_Empty(t *testing.T) {
	f := newFakeFetcher()
	d := NewDispatcher(f, 4)

	outcomes := d.Dispatch(context.Background(), nil, testCreds, 4)

	assert.Empty(t, outcomes)
	assert.Equal(t, 0, f.totalAttempts())
}

func TestDispatch_PanicIsolated(t *testing.T) {
	f := newFakeFetcher()
	f.panicOn = "id-002"

	d := NewDispatcher(f, 3)
	outcomes := d.Dispatch(context.Background(), makeIDs(6), testCreds, 0)

	require.Len(t, outcomes, 6)

	bad := outcomes["id-002"]
	require.NotNil(t, bad.Err)
	assert.Equal(t, upstream.KindTransport, bad.Err.Kind)
	assert.Equal(t, "panic: fetcher exploded", bad.Err.Detail)
	assert.False(t, bad.Retriable())
	assert.Equal(t, "transport error: panic: fetcher exploded", bad.Err.Error())

	for _, id := range []string{"id-000", "id-001", "id-003", "id-004", "id-005"} {
		assert.True(t, outcomes[id].Success(), id)
	}
}

func TestDispatch_EmptyOutcomeBecomesShapeFailure(t *testing.T) {
	f := newFakeFetcher()
	f.script("blank", upstream.Outcome{})

	d := NewDispatcher(f, 1)
	outcomes := d.Dispatch(context.Background(), []string{"blank"}, testCreds, 1)

	o := outcomes["blank"]
	assert.Equal(t, "blank", o.Identifier)
	require.NotNil(t, o.Err)
	assert.Equal(t, upstream.KindShape, o.Err.Kind)
	assert.False(t, o.Retriable())
}

func TestNewDispatcher_NonPositiveDefault(t *testing.T) {
	d := NewDispatcher(newFakeFetcher(), 0)
	assert.Equal(t, DefaultConcurrency, d.defaultLimit)
}
