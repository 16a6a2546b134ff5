package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/evaluation"
	"github.com/nanuguru/Med-Procedure/logging"
	"github.com/nanuguru/Med-Procedure/memory"
	"github.com/nanuguru/Med-Procedure/session"
	"github.com/nanuguru/Med-Procedure/validate"
)

// Config defines the tuning parameters of a pipeline run.
//
// Example:
//
//	cfg := Config{
//	    SearchDeadline:   30 * time.Second,
//	    CompactionBudget: 6000,
//	    MaxRetries:       2,
//	}
type Config struct {
	// SearchDeadline bounds one aggregation pass across all adapters,
	// independently of per-adapter timeouts.
	SearchDeadline time.Duration

	// CompactionBudget is the maximum size, in runes, of the fact text a
	// compacted context keeps. Zero disables the bound.
	CompactionBudget int

	// MaxRetries is the number of validation-triggered re-aggregation
	// cycles a session may consume.
	MaxRetries int

	// RecallLimit caps the results the memory bank contributes to a pass.
	RecallLimit int
}

// DefaultConfig provides the configuration used when none is supplied.
var DefaultConfig = Config{
	SearchDeadline:   45 * time.Second,
	CompactionBudget: 4000,
	MaxRetries:       3,
	RecallLimit:      3,
}

// Validator judges a compacted context.
type Validator interface {
	Validate(cc core.CompactedContext) core.ValidationVerdict
}

// Options configures an Engine instance using the functional options pattern.
//
// Every collaborator has an in-memory default so New() alone yields a
// working engine; only Adapters normally needs to be supplied.
//
// Example:
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Adapters = []core.Adapter{groq, ddg}
//	    o.Config.MaxRetries = 2
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains the run tuning parameters. Defaults to DefaultConfig.
	Config Config

	// Adapters are the capability adapters queried on every pass, in
	// priority order.
	Adapters []core.Adapter

	// SessionStore keeps session state. Defaults to session.InMemoryStore.
	SessionStore core.SessionStore

	// Memory receives every completed procedure and is recalled as the
	// lowest priority adapter. Nil disables the memory bank.
	Memory *memory.Bank

	// Validator judges compacted contexts. Defaults to validate.New().
	Validator Validator

	// Evaluator scores finished documents. Nil skips evaluation.
	Evaluator evaluation.Evaluator

	// Pipeline is the step descriptor runs are driven over.
	Pipeline core.Pipeline

	// Callbacks receives lifecycle events. Defaults to an empty manager.
	Callbacks *CallbackManager

	// TracerProvider creates the spans of runs and stages. Defaults to the
	// global provider.
	TracerProvider trace.TracerProvider

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine orchestrates pipeline runs and owns the lifecycle of sessions.
//
// Each session is driven by at most one run goroutine at a time. A run holds
// only the session id and mutates session state exclusively through the
// SessionStore, so concurrent pause, resume and cancel requests serialize
// with stage progress on the store's per-session lock.
//
// Concurrency Model:
//   - Start and Resume launch a run goroutine and return immediately
//   - the run checks for a pending pause before every step and parks the
//     session with a checkpoint when it finds one
//   - Cancel terminates the session and cancels the run's context so
//     in-flight adapter calls are released
//
// Example Usage:
//
//	eng := engine.New(func(o *engine.Options) { o.Adapters = adapters })
//
//	s, err := eng.Start(ctx, "wound dressing", core.SettingHome)
//	if err != nil {
//	    return err
//	}
//
//	final, err := eng.Wait(ctx, s.ID)
type Engine struct {
	// Immutable after construction
	sessions  core.SessionStore
	adapters  []core.Adapter
	bank      *memory.Bank
	validator Validator
	evaluator evaluation.Evaluator
	pipeline  core.Pipeline
	callbacks *CallbackManager
	tracer    trace.Tracer
	logger    logging.Logger
	config    Config

	// Active runs by session id
	runs   map[string]*run
	runsMu sync.Mutex
}

// run is one goroutine driving a session between a start or resume and the
// next park or terminal transition.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Engine with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Memory:       memory.NewBank(),
		Validator:    validate.New(),
		Evaluator:    evaluation.NewHeuristic(),
		Pipeline:     core.DefaultPipeline(),
		Callbacks:    NewCallbackManager(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Validator == nil {
		opts.Validator = validate.New()
	}
	if len(opts.Pipeline) == 0 {
		opts.Pipeline = core.DefaultPipeline()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.Config.RecallLimit <= 0 {
		opts.Config.RecallLimit = DefaultConfig.RecallLimit
	}

	adapters := append([]core.Adapter(nil), opts.Adapters...)
	if opts.Memory != nil {
		adapters = append(adapters, memory.NewAdapter(opts.Memory, opts.Config.RecallLimit))
	}

	return &Engine{
		sessions:  opts.SessionStore,
		adapters:  adapters,
		bank:      opts.Memory,
		validator: opts.Validator,
		evaluator: opts.Evaluator,
		pipeline:  opts.Pipeline,
		callbacks: opts.Callbacks,
		tracer:    opts.TracerProvider.Tracer("github.com/nanuguru/Med-Procedure/engine"),
		logger:    opts.Logger,
		config:    opts.Config,
		runs:      make(map[string]*run),
	}
}

// Callbacks returns the engine's callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Start creates a processing session for serviceName and launches its run.
// The run is detached from ctx's cancellation but keeps its values.
func (e *Engine) Start(ctx context.Context, serviceName string, setting core.Setting) (core.Session, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return core.Session{}, core.NewInvalidRequest("service_name is required")
	}
	if setting != core.SettingHospital && setting != core.SettingHome {
		return core.Session{}, core.NewInvalidRequest("unknown setting %q", setting)
	}

	s := core.NewSession(uuid.NewString(), serviceName, setting)
	if err := e.sessions.Create(s); err != nil {
		return core.Session{}, err
	}
	e.logger.Info("Session created", "session_id", s.ID, "service_name", serviceName, "setting", setting.String())
	e.stateChanged(ctx, s.ID, "", core.StatusProcessing, "")

	e.launch(ctx, s, core.Checkpoint{
		Query:   serviceName,
		Context: core.NewCompactedContext(serviceName, setting),
	})
	return s.Clone(), nil
}

// Get returns the current state of a session.
func (e *Engine) Get(id string) (core.Session, error) {
	return e.sessions.Get(id)
}

// Pause requests a pause. It takes effect at the run's next step boundary;
// until then the session stays processing with PauseRequested set. Pausing
// a paused session is a no-op and pausing a terminal one fails with
// InvalidState, leaving it unchanged.
func (e *Engine) Pause(id string) (core.Session, error) {
	s, err := e.sessions.Update(id, func(s *core.Session) error {
		return s.RequestPause()
	})
	if err != nil {
		return s, err
	}
	e.logger.Info("Pause requested", "session_id", id, "status", string(s.Status))
	return s, nil
}

// Resume continues a paused session from its checkpoint in a new run. On a
// processing session it withdraws a pending pause request. Terminal sessions
// fail with InvalidState.
func (e *Engine) Resume(ctx context.Context, id string) (core.Session, error) {
	var cp *core.Checkpoint
	s, err := e.sessions.Update(id, func(s *core.Session) error {
		var err error
		cp, err = s.Resume()
		return err
	})
	if err != nil {
		return s, err
	}
	if cp == nil {
		e.logger.Info("Pause request withdrawn", "session_id", id)
		return s, nil
	}

	e.logger.Info("Session resumed", "session_id", id, "next_step", cp.Next, "retries", cp.Retries)
	e.stateChanged(ctx, id, core.StatusPaused, core.StatusProcessing, "")
	e.launch(ctx, s, *cp)
	return s, nil
}

// Cancel terminates a processing or paused session with kind Cancelled and
// cancels its run. In-flight adapter calls are released, not awaited.
func (e *Engine) Cancel(ctx context.Context, id string) (core.Session, error) {
	var from core.SessionStatus
	s, err := e.sessions.Update(id, func(s *core.Session) error {
		from = s.Status
		return s.Cancel()
	})
	if err != nil {
		return s, err
	}

	e.runsMu.Lock()
	if r, ok := e.runs[id]; ok {
		r.cancel()
	}
	e.runsMu.Unlock()

	e.logger.Info("Session cancelled", "session_id", id, "from", string(from))
	e.stateChanged(ctx, id, from, core.StatusError, core.KindCancelled)
	return s, nil
}

// Wait blocks until the session is terminal or paused with no run in
// flight, or until ctx is done.
func (e *Engine) Wait(ctx context.Context, id string) (core.Session, error) {
	for {
		s, err := e.sessions.Get(id)
		if err != nil {
			return s, err
		}
		if s.Status.Terminal() {
			return s, nil
		}

		e.runsMu.Lock()
		r, ok := e.runs[id]
		e.runsMu.Unlock()

		if !ok {
			if s.Status == core.StatusPaused {
				return s, nil
			}
			// Between a resume's state transition and its launch.
			select {
			case <-ctx.Done():
				return s, ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-r.done:
		}
	}
}

// ActiveRuns returns the number of run goroutines in flight.
func (e *Engine) ActiveRuns() int {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	return len(e.runs)
}

// Shutdown cancels every active run and waits for the goroutines to exit or
// for ctx to be done. Sessions of cancelled runs end in error with kind
// Cancelled.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.runsMu.Lock()
	pending := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		r.cancel()
		pending = append(pending, r)
	}
	e.runsMu.Unlock()

	for _, r := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
		}
	}
	return nil
}

// launch registers a run for s and starts driving it from cp.
func (e *Engine) launch(ctx context.Context, s core.Session, cp core.Checkpoint) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{cancel: cancel, done: make(chan struct{})}

	e.runsMu.Lock()
	e.runs[s.ID] = r
	e.runsMu.Unlock()

	go func() {
		defer func() {
			cancel()
			e.runsMu.Lock()
			if e.runs[s.ID] == r {
				delete(e.runs, s.ID)
			}
			e.runsMu.Unlock()
			close(r.done)
		}()

		e.drive(runCtx, s.ID, s.ServiceName, s.Setting, cp)
	}()
}

// stateChanged notifies StateChange callbacks. Callback errors are logged.
func (e *Engine) stateChanged(ctx context.Context, id string, from, to core.SessionStatus, kind core.ErrorKind) {
	err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnStateChange, &CallbackContext{
		SessionID: id,
		From:      from,
		To:        to,
		ErrorKind: kind,
	})
	if err != nil {
		e.logger.Warn("State change callback failed", "session_id", id, "error", err.Error())
	}
}

var errUnchanged = errors.New("session unchanged")
