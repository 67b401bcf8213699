package recall

import (
	"context"
	"fmt"
	"sync"

	"github.com/recallio/recall-go/store"
)

// Processor is a pluggable enrichment step. Process receives the
// in-progress record and returns a partial metadata mapping to merge
// into it. Processors may also mutate the record itself, typically
// Content for redaction-style steps.
type Processor interface {
	// Name identifies the processor for registration and logs.
	Name() string

	// Process inspects (and may mutate) the record and returns extra
	// metadata. Returning an error skips this processor's contribution
	// without aborting the pipeline.
	Process(ctx context.Context, record *store.Memory) (map[string]any, error)
}

// processorChain is a read-mostly ordered processor list. Reads take a
// snapshot of the slice, so an in-flight save is unaffected by
// concurrent registration.
type processorChain struct {
	mu         sync.RWMutex
	processors []Processor
}

// register appends p, replacing any existing processor with the same
// name in place so re-registration keeps its original position.
func (c *processorChain) register(p Processor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Processor, len(c.processors))
	copy(next, c.processors)
	for i, existing := range next {
		if existing.Name() == p.Name() {
			next[i] = p
			c.processors = next
			return
		}
	}
	c.processors = append(next, p)
}

// unregister removes the named processor. Unknown names are a no-op so
// composition stays idempotent.
func (c *processorChain) unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Processor, 0, len(c.processors))
	for _, p := range c.processors {
		if p.Name() != name {
			next = append(next, p)
		}
	}
	c.processors = next
}

// snapshot returns the current execution order.
func (c *processorChain) snapshot() []Processor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.processors
}

// runProcessor invokes one processor, converting a panic into an error
// so a misbehaving plugin cannot take down the pipeline.
func runProcessor(ctx context.Context, p Processor, record *store.Memory) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()
	return p.Process(ctx, record)
}
