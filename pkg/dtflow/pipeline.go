package dtflow

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/dtflow/dtflow/pkg/dtflow/observability"
)

// ProcessorFunc mutates an event in place: derive attributes, attach
// cross-collection references, prune entities. Returning an error fails
// the event, not the run.
type ProcessorFunc func(ev *Event) error

// SelectorFunc decides whether an event survives. Returning false drops
// the event without error.
type SelectorFunc func(ev *Event) (bool, error)

// Pipeline runs events through named stages: every preprocessor in
// registration order, then every selector until one rejects. Register
// stages before the first Run; afterwards Run is safe for concurrent
// use as long as the stage functions are.
type Pipeline struct {
	procs []stage[ProcessorFunc]
	sels  []stage[SelectorFunc]
	names map[string]bool
	log   *slog.Logger
}

type stage[F any] struct {
	name string
	fn   F
}

// NewPipeline returns an empty pipeline. With no stages Run passes
// every event through unchanged.
func NewPipeline() *Pipeline {
	return &Pipeline{names: make(map[string]bool)}
}

// WithLogger attaches a structured logger for stage diagnostics and
// returns the pipeline for chaining.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.log = logger
	return p
}

// AddProcessor appends a preprocessor stage and returns the pipeline
// for chaining.
//
// Panics if:
//   - name is empty
//   - name is already registered
//   - fn is nil
func (p *Pipeline) AddProcessor(name string, fn ProcessorFunc) *Pipeline {
	p.checkStage(name, fn == nil)
	p.procs = append(p.procs, stage[ProcessorFunc]{name: name, fn: fn})
	return p
}

// AddSelector appends a selector stage and returns the pipeline for
// chaining. Selectors run after all preprocessors, in registration
// order, and short-circuit on the first rejection.
//
// Panics under the same conditions as AddProcessor.
func (p *Pipeline) AddSelector(name string, fn SelectorFunc) *Pipeline {
	p.checkStage(name, fn == nil)
	p.sels = append(p.sels, stage[SelectorFunc]{name: name, fn: fn})
	return p
}

func (p *Pipeline) checkStage(name string, nilFn bool) {
	if name == "" {
		panic("dtflow: stage name cannot be empty")
	}
	if nilFn {
		panic("dtflow: stage function cannot be nil")
	}
	if p.names[name] {
		panic(fmt.Sprintf("dtflow: duplicate stage name: %s", name))
	}
	p.names[name] = true
}

// Stages lists registered stage names, preprocessors first, in run
// order.
func (p *Pipeline) Stages() []string {
	out := make([]string, 0, len(p.procs)+len(p.sels))
	for _, st := range p.procs {
		out = append(out, st.name)
	}
	for _, st := range p.sels {
		out = append(out, st.name)
	}
	return out
}

// Run sends one event through the pipeline. A nil event with a nil
// error means a selector rejected it. A non-nil error is a
// ProcessError naming the failed stage; stage panics are captured and
// wrapped rather than propagated.
func (p *Pipeline) Run(ev *Event) (*Event, error) {
	for _, st := range p.procs {
		if err := p.runProcessor(st, ev); err != nil {
			observability.LogStageError(p.log, st.name, ev.Index(), err)
			return nil, err
		}
	}
	for _, st := range p.sels {
		keep, err := p.runSelector(st, ev)
		if err != nil {
			observability.LogStageError(p.log, st.name, ev.Index(), err)
			return nil, err
		}
		if !keep {
			observability.LogEventRejected(p.log, ev.Index(), st.name)
			return nil, nil
		}
	}
	return ev, nil
}

func (p *Pipeline) runProcessor(st stage[ProcessorFunc], ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProcessError{
				Stage: st.name,
				Op:    "process",
				Event: ev.Index(),
				Err:   &PanicError{Value: r, Stack: string(debug.Stack())},
			}
		}
	}()
	if ferr := st.fn(ev); ferr != nil {
		return &ProcessError{Stage: st.name, Op: "process", Event: ev.Index(), Err: ferr}
	}
	return nil
}

func (p *Pipeline) runSelector(st stage[SelectorFunc], ev *Event) (keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			keep = false
			err = &ProcessError{
				Stage: st.name,
				Op:    "select",
				Event: ev.Index(),
				Err:   &PanicError{Value: r, Stack: string(debug.Stack())},
			}
		}
	}()
	keep, ferr := st.fn(ev)
	if ferr != nil {
		return false, &ProcessError{Stage: st.name, Op: "select", Event: ev.Index(), Err: ferr}
	}
	return keep, nil
}
