package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/upstream"
)

var testCreds = credentials.Bundle{Cookie: "NID_AUT=abc"}

// fakeFetcher scripts outcomes per identifier and attempt, and records how
// many fetches overlap.
type fakeFetcher struct {
	mu          sync.Mutex
	scripts     map[string][]upstream.Outcome
	attempts    map[string]int
	inflight    int
	maxInflight int

	delay   time.Duration
	panicOn string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		scripts:  make(map[string][]upstream.Outcome),
		attempts: make(map[string]int),
	}
}

// script sets the outcomes for successive attempts; the last one repeats.
func (f *fakeFetcher) script(id string, outcomes ...upstream.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = outcomes
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string, _ credentials.Bundle) upstream.Outcome {
	f.mu.Lock()
	f.attempts[id]++
	n := f.attempts[id]
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	script := f.scripts[id]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if id == f.panicOn {
		panic("fetcher exploded")
	}
	if ctx.Err() != nil {
		return transportFailure(id)
	}
	if len(script) == 0 {
		return upstream.Succeeded(id, upstream.Product{"nvMid": id})
	}
	return script[min(n, len(script))-1]
}

func (f *fakeFetcher) attemptsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

func (f *fakeFetcher) totalAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.attempts {
		total += n
	}
	return total
}

func (f *fakeFetcher) peakInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func success(id string) upstream.Outcome {
	return upstream.Succeeded(id, upstream.Product{"nvMid": id})
}

func transportFailure(id string) upstream.Outcome {
	return upstream.Failed(id, &upstream.FetchError{Kind: upstream.KindTransport})
}

func statusFailure(id string, code int) upstream.Outcome {
	return upstream.Failed(id, &upstream.FetchError{
		Kind:       upstream.KindHTTPStatus,
		Detail:     fmt.Sprintf("status %d", code),
		StatusCode: code,
	})
}
