package wizard

import (
	"context"
	"fmt"
)

// Processor is a side effect run after a page's data has been merged.
// Returning an error aborts the remaining processors and the redirect.
type Processor interface {
	Name() string
	Process(ctx context.Context, req *Request) error
}

type namedFunc struct {
	name string
	fn   func(context.Context, *Request) error
}

// ProcessorFunc wraps a function as a named Processor.
func ProcessorFunc(name string, fn func(context.Context, *Request) error) Processor {
	return namedFunc{name: name, fn: fn}
}

func (p namedFunc) Name() string { return p.name }

func (p namedFunc) Process(ctx context.Context, req *Request) error {
	return p.fn(ctx, req)
}

// RunProcessors runs processors in order and stops at the first failure.
func RunProcessors(ctx context.Context, req *Request, processors []Processor) error {
	for _, p := range processors {
		if err := p.Process(ctx, req); err != nil {
			return fmt.Errorf("processor %s: %w", p.Name(), err)
		}
	}
	return nil
}
