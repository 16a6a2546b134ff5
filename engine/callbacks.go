package engine

import (
	"context"
	"sync"
	"time"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/logging"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks provide a way to hook into a pipeline run without modifying the
// engine: metrics collection, auditing and alerting all attach here.
//
// Available callback types:
//   - BeforeStage/AfterStage: around every pipeline step
//   - AdapterFault: an adapter contributed nothing to an aggregation pass
//   - Retry: a failed verdict sent the run back to aggregation
//   - StateChange: a session changed status
//   - OnError: a run ended in error
//
// Callbacks run synchronously in the run's goroutine. Only BeforeStage can
// influence execution: an error returned there fails the run.
type CallbackType string

const (
	// CallbackBeforeStage is triggered before a pipeline step executes.
	CallbackBeforeStage CallbackType = "before_stage"

	// CallbackAfterStage is triggered after a pipeline step executes.
	// Duration and Err describe the step's outcome.
	CallbackAfterStage CallbackType = "after_stage"

	// CallbackAdapterFault is triggered once per adapter fault of a pass.
	CallbackAdapterFault CallbackType = "adapter_fault"

	// CallbackRetry is triggered when validation consumes a retry.
	CallbackRetry CallbackType = "retry"

	// CallbackOnStateChange is triggered after a session status transition.
	// From is empty for newly created sessions.
	CallbackOnStateChange CallbackType = "state_change"

	// CallbackOnError is triggered when a run fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available to a callback. Fields
// not relevant to the callback type are left zero.
type CallbackContext struct {
	// SessionID identifies the session the run belongs to.
	SessionID string

	// CallbackType indicates which lifecycle point triggered the callback.
	CallbackType CallbackType

	// Stage is the pipeline step for stage callbacks.
	Stage core.StepKind

	// Duration is the step's wall time for AfterStage callbacks.
	Duration time.Duration

	// Err is the step or run error, if any.
	Err error

	// Fault is set for AdapterFault callbacks.
	Fault *core.Fault

	// Verdict is set for Retry callbacks.
	Verdict *core.ValidationVerdict

	// Retries is the number of retries consumed so far.
	Retries int

	// From and To are set for StateChange callbacks.
	From core.SessionStatus
	To   core.SessionStatus

	// ErrorKind is the kind recorded on the session when To is error.
	ErrorKind core.ErrorKind

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for run lifecycle hooks.
//
// Implementations should be fast; callbacks block the run that triggers
// them. They must be safe for concurrent use since runs of different
// sessions execute in parallel.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	retries := NewFunctionCallback(
//	    CallbackRetry,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("session %s retry %d", cc.SessionID, cc.Retries)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is the registry of callbacks consulted by the engine.
//
// Callbacks are executed in registration order, and a callback returning an
// error prevents the callbacks registered after it from running.
// Registration and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
//
// Example:
//
//	manager := NewCallbackManager()
//	manager.RegisterCallback(loggingCallback)
//	manager.RegisterCallback(metricsCallback)
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType and
// returns the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event with the fields relevant to its type.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"callback", string(c.callbackType), "session_id", cc.SessionID}
	switch c.callbackType {
	case CallbackBeforeStage, CallbackAfterStage:
		args = append(args, "stage", string(cc.Stage), "duration", cc.Duration)
	case CallbackAdapterFault:
		if cc.Fault != nil {
			args = append(args, "adapter", cc.Fault.Adapter, "kind", string(cc.Fault.Kind))
		}
	case CallbackRetry:
		args = append(args, "retries", cc.Retries)
	case CallbackOnStateChange:
		args = append(args, "from", string(cc.From), "to", string(cc.To))
	}
	if cc.Err != nil {
		args = append(args, "error", cc.Err.Error())
		c.logger.Warn("Engine event", args...)
		return nil
	}
	c.logger.Debug("Engine event", args...)
	return nil
}
