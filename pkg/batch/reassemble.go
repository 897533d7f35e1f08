package batch

import (
	"errors"

	"github.com/scorebill/productfetch/pkg/upstream"
)

var errMissingOutcome = errors.New("no outcome recorded for identifier")

// Result is the outcome of a batch, aligned with the request.
type Result struct {
	// Items has one outcome per request position. Positions sharing an
	// identifier carry the same outcome.
	Items []upstream.Outcome

	Total             int
	SuccessCount      int
	FailCount         int
	UniqueCount       int
	DuplicatesRemoved int

	// Rounds counts dispatch rounds, retries included.
	Rounds int
}

// Reassemble projects per-identifier outcomes back onto the request order.
// It has no side effects and returns the same Result for the same inputs.
func Reassemble(set IdentifierSet, outcomes map[string]upstream.Outcome) Result {
	items := make([]upstream.Outcome, set.Len())

	for _, id := range set.Order {
		o, ok := outcomes[id]
		if !ok {
			o = upstream.Failed(id, &upstream.FetchError{Kind: upstream.KindTransport, Err: errMissingOutcome})
		}
		for _, pos := range set.Positions[id] {
			items[pos] = o
		}
	}

	success := 0
	for _, o := range items {
		if o.Success() {
			success++
		}
	}

	return Result{
		Items:             items,
		Total:             len(items),
		SuccessCount:      success,
		FailCount:         len(items) - success,
		UniqueCount:       set.UniqueCount(),
		DuplicatesRemoved: set.DuplicatesRemoved(),
	}
}
