package orders

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderflow/internal/saga"
)

// ErrRunInFlight signals a second submission for an order whose saga is
// still running. Concurrent runs for the same order are a caller error; the
// service guards against them in-process rather than with distributed locks.
var ErrRunInFlight = errors.New("saga already in flight for order")

// ErrUnknownRun signals a status or cancel request for a handle the service
// does not know.
var ErrUnknownRun = errors.New("unknown saga run")

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Definition  *saga.Definition
	Registry    *saga.Registry
	Retry       saga.RetryPolicy
	StepTimeout time.Duration
	RunLog      RunLog
	// Sink receives the run lifecycle events after the service has applied
	// them to its own run tracking; may be nil.
	Sink saga.EventSink
	Logf func(format string, args ...any)
}

// Service accepts order submissions and drives their sagas to completion.
// Runs for distinct orders execute concurrently and independently.
type Service struct {
	def    *saga.Definition
	orch   *saga.Orchestrator
	runlog RunLog
	sink   saga.EventSink
	logf   func(format string, args ...any)

	mu       sync.Mutex
	inflight map[string]string    // orderID -> handle
	runs     map[string]*runState // handle -> state
}

type runState struct {
	mu        sync.Mutex
	handle    string
	orderID   string
	current   string
	context   saga.Context
	outcome   *saga.Outcome
	cancel    context.CancelFunc
	startedAt time.Time
}

// RunStatus is a point-in-time snapshot of one saga run.
type RunStatus struct {
	Handle      string        `json:"handle"`
	OrderID     string        `json:"orderId"`
	CurrentStep string        `json:"currentStep"`
	Context     saga.Context  `json:"context"`
	Outcome     *saga.Outcome `json:"outcome,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Definition == nil || cfg.Registry == nil {
		return nil, errors.New("definition and registry are required")
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	runlog := cfg.RunLog
	if runlog == nil {
		runlog = NoopRunLog{}
	}

	s := &Service{
		def:      cfg.Definition,
		runlog:   runlog,
		sink:     cfg.Sink,
		logf:     logf,
		inflight: make(map[string]string),
		runs:     make(map[string]*runState),
	}
	s.orch = saga.NewOrchestrator(cfg.Registry, saga.Config{
		Retry:       cfg.Retry,
		StepTimeout: cfg.StepTimeout,
		Sink:        s.handleEvent,
		Logf:        logf,
	})
	return s, nil
}

// Submit runs the order saga synchronously and returns its terminal outcome.
// Cancelling ctx cancels the in-flight step and rolls the run back.
func (s *Service) Submit(ctx context.Context, payload OrderPayload) (saga.Outcome, error) {
	if err := payload.CheckInput(); err != nil {
		return saga.Outcome{}, err
	}
	state, release, err := s.begin(payload.OrderID)
	if err != nil {
		return saga.Outcome{}, err
	}
	defer release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	state.setCancel(cancel)

	s.logStart(state.handle, payload)
	return s.orch.Run(runCtx, state.handle, s.def, payload), nil
}

// SubmitAsync starts the order saga in the background and returns a handle
// for polling. The run is detached from the caller's context; use Cancel to
// stop it.
func (s *Service) SubmitAsync(ctx context.Context, payload OrderPayload) (string, error) {
	if err := payload.CheckInput(); err != nil {
		return "", err
	}
	state, release, err := s.begin(payload.OrderID)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	state.setCancel(cancel)

	go func() {
		defer release()
		defer cancel()
		s.logStart(state.handle, payload)
		s.orch.Run(runCtx, state.handle, s.def, payload)
	}()

	return state.handle, nil
}

// Status returns a snapshot of the run behind handle.
func (s *Service) Status(handle string) (RunStatus, error) {
	s.mu.Lock()
	state, ok := s.runs[handle]
	s.mu.Unlock()
	if !ok {
		return RunStatus{}, ErrUnknownRun
	}
	return state.snapshot(), nil
}

// Cancel stops an in-flight run, triggering its compensation walk. It is a
// no-op for runs that already finished.
func (s *Service) Cancel(handle string) error {
	s.mu.Lock()
	state, ok := s.runs[handle]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownRun
	}
	state.mu.Lock()
	cancel := state.cancel
	done := state.outcome != nil
	state.mu.Unlock()
	if !done && cancel != nil {
		cancel()
	}
	return nil
}

// begin registers a run, enforcing one in-flight saga per order.
func (s *Service) begin(orderID string) (*runState, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[orderID]; ok {
		return nil, nil, ErrRunInFlight
	}

	state := &runState{
		handle:    uuid.NewString(),
		orderID:   orderID,
		context:   saga.Context{},
		startedAt: time.Now(),
	}
	s.inflight[orderID] = state.handle
	s.runs[state.handle] = state

	release := func() {
		s.mu.Lock()
		delete(s.inflight, orderID)
		s.mu.Unlock()
	}
	return state, release, nil
}

func (s *Service) logStart(handle string, payload OrderPayload) {
	ctx, cancel := logContext()
	defer cancel()
	if err := s.runlog.StartRun(ctx, handle, payload.OrderID, payload.Payment.Amount); err != nil {
		s.logf("run log: start %s: %v", handle, err)
	}
}

// handleEvent applies orchestrator events to the service's run tracking,
// mirrors them into the run log, and forwards them to the configured sink.
func (s *Service) handleEvent(ev saga.Event) {
	s.mu.Lock()
	state, ok := s.runs[ev.RunID]
	s.mu.Unlock()
	if ok {
		state.apply(ev)
	}
	s.record(ev)
	if s.sink != nil {
		s.sink(ev)
	}
}

func (s *Service) record(ev saga.Event) {
	ctx, cancel := logContext()
	defer cancel()

	var err error
	switch ev.Type {
	case saga.EventStepSucceeded:
		err = s.runlog.RecordStep(ctx, ev.RunID, ev.Step, "succeeded", "")
	case saga.EventStepFailed:
		err = s.runlog.RecordStep(ctx, ev.RunID, ev.Step, "failed", ev.Err.Error())
	case saga.EventCompensationApplied:
		detail := ""
		if ev.Err != nil {
			detail = ev.Err.Error()
		}
		err = s.runlog.RecordStep(ctx, ev.RunID, ev.Step, "compensated", detail)
	case saga.EventRunFinished:
		err = s.runlog.FinishRun(ctx, ev.RunID, ev.Outcome.Status)
	default:
		return
	}
	if err != nil {
		s.logf("run log: %s %s: %v", ev.Type, ev.RunID, err)
	}
}

func logContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

func (r *runState) setCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

func (r *runState) apply(ev saga.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case saga.EventStepStarted:
		r.current = ev.Step
	case saga.EventStepSucceeded:
		r.context[ev.Step] = ev.Result
	case saga.EventRunFinished:
		out := *ev.Outcome
		r.outcome = &out
	}
}

func (r *runState) snapshot() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := RunStatus{
		Handle:      r.handle,
		OrderID:     r.orderID,
		CurrentStep: r.current,
		Context:     r.context.Clone(),
		StartedAt:   r.startedAt,
	}
	if r.outcome != nil {
		out := *r.outcome
		status.Outcome = &out
	}
	return status
}
