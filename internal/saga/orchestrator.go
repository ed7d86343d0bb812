package saga

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Config tunes one Orchestrator.
type Config struct {
	// Retry bounds attempts for each step invocation.
	Retry RetryPolicy
	// StepTimeout caps a single attempt; zero means no cap. A timed-out
	// attempt is treated as failed and is not retried.
	StepTimeout time.Duration
	// Sink receives run lifecycle events; may be nil.
	Sink EventSink
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Orchestrator executes saga runs against a registry of step executors.
// It is safe for concurrent use; each Run is an independent sequential
// pipeline with its own Context.
type Orchestrator struct {
	registry    *Registry
	retry       RetryPolicy
	stepTimeout time.Duration
	sink        EventSink
	logf        func(format string, args ...any)
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(registry *Registry, cfg Config) *Orchestrator {
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Orchestrator{
		registry:    registry,
		retry:       cfg.Retry,
		stepTimeout: cfg.StepTimeout,
		sink:        cfg.Sink,
		logf:        logf,
	}
}

// Run drives one saga run from the definition's start step to a terminal
// outcome. Cancelling ctx fails the in-flight step and triggers the same
// compensation walk as a step-level error; compensations themselves run on
// a detached context so a cancelled run still rolls back.
func (o *Orchestrator) Run(ctx context.Context, runID string, def *Definition, payload any) Outcome {
	runCtx := Context{}
	var completed []string

	o.emit(Event{Type: EventRunStarted, RunID: runID, At: time.Now()})

	cur := def.Start()
	for {
		step, ok := def.Step(cur)
		if !ok {
			// Unreachable after NewDefinition validation.
			err := fmt.Errorf("%w: unknown step %q", ErrConfiguration, cur)
			return o.fail(ctx, runID, def, runCtx, completed, Step{Name: cur}, err, payload)
		}

		o.emit(Event{Type: EventStepStarted, RunID: runID, Step: step.Name, At: time.Now()})
		started := time.Now()
		result, err := o.executeStep(ctx, step.Name, payload, runCtx)
		if err != nil {
			o.logf("saga %s: step %s failed: %v", runID, step.Name, err)
			o.emit(Event{Type: EventStepFailed, RunID: runID, Step: step.Name, Err: err, At: time.Now(), Elapsed: time.Since(started)})
			return o.fail(ctx, runID, def, runCtx, completed, step, err, payload)
		}
		runCtx[step.Name] = result
		completed = append(completed, step.Name)
		o.emit(Event{Type: EventStepSucceeded, RunID: runID, Step: step.Name, Result: result, At: time.Now(), Elapsed: time.Since(started)})

		edge, matched := pickEdge(step, runCtx)
		if !matched {
			err := fmt.Errorf("%w: no edge matched after step %q", ErrConfiguration, step.Name)
			o.logf("saga %s: %v", runID, err)
			return o.fail(ctx, runID, def, runCtx, completed, step, err, payload)
		}

		switch {
		case edge.Reject != "":
			return o.finish(runID, Outcome{
				Status:  StatusRejected,
				Reason:  edge.Reject,
				Step:    step.Name,
				Context: runCtx.Clone(),
			})
		case edge.Done:
			return o.finish(runID, Outcome{
				Status:  StatusSucceeded,
				Step:    step.Name,
				Context: runCtx.Clone(),
			})
		default:
			cur = edge.To
		}
	}
}

// pickEdge evaluates edges in declared order; the first whose predicate is
// nil or true wins.
func pickEdge(step Step, c Context) (Edge, bool) {
	for _, e := range step.Edges {
		if e.When == nil || e.When(c) {
			return e, true
		}
	}
	return Edge{}, false
}

func (o *Orchestrator) executeStep(ctx context.Context, name string, payload any, runCtx Context) (any, error) {
	exec, ok := o.registry.Lookup(name)
	if !ok {
		return nil, Permanent(fmt.Errorf("%w: %q", ErrNotRegistered, name))
	}

	var result any
	err := o.retry.Do(ctx, func() error {
		res, err := o.attempt(ctx, exec, Input{Step: name, Payload: payload, Context: runCtx.Clone()})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) attempt(ctx context.Context, exec Executor, in Input) (any, error) {
	if o.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()
	}
	return exec.Execute(ctx, in)
}

// fail runs the compensation walk for a failed step and returns the
// terminal outcome. Compensations run at most once each, in reverse
// completion order, starting with the failed step's own compensation.
func (o *Orchestrator) fail(ctx context.Context, runID string, def *Definition, runCtx Context, completed []string, failed Step, cause error, payload any) Outcome {
	reason := fmt.Sprintf("step %s failed: %v", failed.Name, cause)
	comps := compensationsFor(failed, completed, func(name string) string {
		s, ok := def.Step(name)
		if !ok {
			return ""
		}
		return s.Compensate
	})

	var ran []string
	compCtx := context.WithoutCancel(ctx)
	for _, name := range comps {
		result, err := o.executeStep(compCtx, name, payload, runCtx)
		o.emit(Event{Type: EventCompensationApplied, RunID: runID, Step: name, Err: err, At: time.Now()})
		if err != nil {
			o.logf("saga %s: compensation %s failed: %v", runID, name, err)
			return o.finish(runID, Outcome{
				Status:           StatusUnrecoverable,
				Reason:           fmt.Sprintf("%s; compensation %s failed: %v", reason, name, err),
				Step:             failed.Name,
				Context:          runCtx.Clone(),
				Err:              cause,
				CompensationErr:  fmt.Errorf("compensation %s: %w", name, err),
				CompensationsRun: ran,
			})
		}
		runCtx[name] = result
		ran = append(ran, name)
	}

	return o.finish(runID, Outcome{
		Status:           StatusFailed,
		Reason:           reason,
		Step:             failed.Name,
		Context:          runCtx.Clone(),
		Err:              cause,
		CompensationsRun: ran,
	})
}

func (o *Orchestrator) finish(runID string, out Outcome) Outcome {
	o.emit(Event{Type: EventRunFinished, RunID: runID, Step: out.Step, Outcome: &out, At: time.Now()})
	return out
}

func (o *Orchestrator) emit(ev Event) {
	if o.sink != nil {
		o.sink(ev)
	}
}

// compensationsFor collects the compensation steps to run for a failure at
// `failed` after `completed` steps, deduplicated and ordered: the failed
// step's own compensation first, then each completed step's in reverse
// completion order.
func compensationsFor(failed Step, completed []string, compOf func(string) string) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	add(failed.Compensate)
	for i := len(completed) - 1; i >= 0; i-- {
		add(compOf(completed[i]))
	}
	return names
}
