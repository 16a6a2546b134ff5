package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nanuguru/Med-Procedure/compact"
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/memory"
	"github.com/nanuguru/Med-Procedure/search"
	"github.com/nanuguru/Med-Procedure/synthesize"
)

// runState is what a run goroutine knows about its session. It never holds
// the session itself.
type runState struct {
	id          string
	serviceName string
	setting     core.Setting
	cp          core.Checkpoint
	budget      *core.RetryBudget
	aggregator  *search.Aggregator
}

// drive executes pipeline steps from cp until the session parks, reaches a
// terminal state or the run context is cancelled.
func (e *Engine) drive(ctx context.Context, id, serviceName string, setting core.Setting, cp core.Checkpoint) {
	ctx, span := e.tracer.Start(ctx, "medprocedure.run", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("service.name", serviceName),
		attribute.String("setting", setting.String()),
		attribute.Int("resume.step", cp.Next),
	))
	defer span.End()

	rs := &runState{
		id:          id,
		serviceName: serviceName,
		setting:     setting,
		cp:          cp,
		budget:      core.NewRetryBudget(e.config.MaxRetries),
	}
	rs.budget.Restore(cp.Retries)
	rs.aggregator = search.New(e.adapters, func(o *search.Options) {
		o.Deadline = e.config.SearchDeadline
		o.Budget = e.config.CompactionBudget
		o.Logger = e.logger
		o.OnFault = func(ctx context.Context, f core.Fault) {
			if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAdapterFault, &CallbackContext{SessionID: id, Fault: &f}); err != nil {
				e.logger.Warn("Adapter fault callback failed", "session_id", id, "error", err.Error())
			}
		}
	})

	for rs.cp.Next < len(e.pipeline) {
		stop, err := e.boundary(ctx, rs)
		if err != nil {
			e.logger.Error("Session boundary failed", "session_id", id, "error", err.Error())
			span.RecordError(err)
			return
		}
		if stop {
			return
		}

		step := e.pipeline[rs.cp.Next]
		if err := e.step(ctx, rs, step); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.fail(ctx, rs, err)
			return
		}

		if ctx.Err() != nil {
			e.fail(ctx, rs, core.NewCancelled("run cancelled"))
			return
		}
	}
}

// boundary is the suspension point before every step. It records progress
// reached so far and parks the session if a pause is pending. stop reports
// whether the run must exit.
func (e *Engine) boundary(ctx context.Context, rs *runState) (stop bool, err error) {
	progress := 0.0
	if rs.cp.Next > 0 {
		progress = e.pipeline[rs.cp.Next-1].Progress
	}

	var parked, terminal bool
	_, err = e.sessions.Update(rs.id, func(s *core.Session) error {
		if s.Status.Terminal() {
			terminal = true
			return errUnchanged
		}
		before := s.Progress
		s.Advance(progress)
		parked = s.Park(rs.cp.Clone())
		if !parked && s.Progress == before {
			return errUnchanged
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return true, err
	}

	if parked {
		e.logger.Info("Session paused", "session_id", rs.id, "next_step", string(e.pipeline[rs.cp.Next].Kind), "retries", rs.cp.Retries)
		e.stateChanged(ctx, rs.id, core.StatusProcessing, core.StatusPaused, "")
	}
	return parked || terminal, nil
}

// step runs one pipeline step and advances the checkpoint.
func (e *Engine) step(ctx context.Context, rs *runState, step core.PipelineStep) (err error) {
	ctx, span := e.tracer.Start(ctx, "stage."+string(step.Kind), trace.WithAttributes(
		attribute.String("session.id", rs.id),
		attribute.String("stage.mode", string(step.Mode)),
		attribute.Int("retries", rs.cp.Retries),
	))
	defer span.End()

	cbCtx := &CallbackContext{SessionID: rs.id, Stage: step.Kind, Retries: rs.cp.Retries}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeStage, cbCtx); err != nil {
		return fmt.Errorf("before %s: %w", step.Kind, err)
	}

	start := time.Now()
	defer func() {
		dur := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.logger.Debug("Stage finished", "session_id", rs.id, "stage", string(step.Kind), "duration", dur)
		after := &CallbackContext{SessionID: rs.id, Stage: step.Kind, Duration: dur, Err: err, Retries: rs.cp.Retries}
		if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterStage, after); cbErr != nil {
			e.logger.Warn("After stage callback failed", "session_id", rs.id, "error", cbErr.Error())
		}
	}()

	switch step.Kind {
	case core.StepAggregate:
		agg := rs.aggregator.Run(ctx, rs.cp.Query, rs.setting)
		span.SetAttributes(attribute.Int("results", len(agg.Results)), attribute.Int("faults", len(agg.Faults)))
		rs.cp.Aggregated = &agg
		rs.cp.Next++

	case core.StepCompact:
		if rs.cp.Aggregated == nil {
			return core.NewInternal("compaction without an aggregation pass")
		}
		rs.cp.Context = compact.Merge(rs.cp.Context, *rs.cp.Aggregated, e.config.CompactionBudget)
		rs.cp.Aggregated = nil
		span.SetAttributes(attribute.Int("facts", len(rs.cp.Context.Facts)), attribute.Int("size", rs.cp.Context.Size()))
		rs.cp.Next++

	case core.StepValidate:
		e.validate(ctx, rs, span)

	case core.StepSynthesize:
		return e.synthesize(ctx, rs)

	default:
		return core.NewInternal("unknown pipeline step %q", step.Kind)
	}
	return nil
}

// validate judges the context and either moves on or loops back to
// aggregation while the retry budget lasts. Contradicting facts are pruned
// in both cases so a later pass or the synthesis never carries them.
func (e *Engine) validate(ctx context.Context, rs *runState, span trace.Span) {
	verdict := e.validator.Validate(rs.cp.Context)
	rs.cp.Context = rs.cp.Context.WithAdaptations(verdict.Adaptations...)
	span.SetAttributes(attribute.Bool("passed", verdict.Passed), attribute.Int("deficiencies", len(verdict.Deficiencies)))

	if verdict.Passed {
		rs.cp.Next++
		return
	}

	rs.cp.Context = rs.cp.Context.Prune(verdict.Contradictions)
	rs.cp.Contradictions = append(rs.cp.Contradictions, verdict.Contradictions...)

	if err := rs.budget.Consume(); err != nil {
		e.logger.Warn("Proceeding with best-effort context",
			"session_id", rs.id,
			"kind", string(core.KindRetryBudgetExhausted),
			"retries", rs.budget.Used(),
			"deficiencies", len(verdict.Deficiencies),
		)
		rs.cp.Next++
		return
	}

	rs.cp.Retries = rs.budget.Used()
	if verdict.Retry != nil && verdict.Retry.Query != "" {
		rs.cp.Query = verdict.Retry.Query
	}
	rs.cp.Next = max(e.pipeline.Index(core.StepAggregate), 0)

	e.logger.Info("Validation failed, retrying", "session_id", rs.id, "retries", rs.cp.Retries, "query", rs.cp.Query)
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackRetry, &CallbackContext{
		SessionID: rs.id,
		Verdict:   &verdict,
		Retries:   rs.cp.Retries,
	}); err != nil {
		e.logger.Warn("Retry callback failed", "session_id", rs.id, "error", err.Error())
	}
}

// synthesize builds, evaluates and stores the final document and completes
// the session.
func (e *Engine) synthesize(ctx context.Context, rs *runState) error {
	doc, err := synthesize.Synthesize(rs.cp.Context)
	if err != nil {
		return err
	}

	if e.evaluator != nil {
		ev, err := e.evaluator.Evaluate(doc)
		if err != nil {
			e.logger.Warn("Evaluation failed", "session_id", rs.id, "error", err.Error())
		} else {
			doc.Evaluation = ev
		}
	}

	if _, err := e.sessions.Update(rs.id, func(s *core.Session) error {
		return s.Complete(doc)
	}); err != nil {
		// Cancelled while synthesizing.
		e.logger.Info("Discarding result", "session_id", rs.id, "error", err.Error())
		rs.cp.Next = len(e.pipeline)
		return nil
	}
	rs.cp.Next = len(e.pipeline)

	e.logger.Info("Session completed", "session_id", rs.id, "steps", len(doc.Steps), "sources", len(doc.SourcesUsed))
	e.stateChanged(ctx, rs.id, core.StatusProcessing, core.StatusCompleted, "")

	if e.bank != nil {
		e.remember(rs.id, doc)
	}
	return nil
}

// remember stores the procedure content of doc in the memory bank.
func (e *Engine) remember(id string, doc *core.ProcedureDocument) {
	content, err := memory.ProcedureContent(doc)
	if err != nil {
		e.logger.Warn("Skipping memory store", "session_id", id, "error", err.Error())
		return
	}
	importance := 0.9
	if doc.Evaluation != nil {
		importance = doc.Evaluation.Overall
	}
	e.bank.Store(content, map[string]any{
		memory.MetaServiceName: doc.ServiceName,
		memory.MetaSetting:     doc.Setting.String(),
		memory.MetaSessionID:   id,
	}, importance)
}

// fail records err on the session. Sessions that already left processing,
// for example through Cancel, are left as they are.
func (e *Engine) fail(ctx context.Context, rs *runState, err error) {
	kind := core.KindOf(err)
	msg := err.Error()
	var ce *core.Error
	if errors.As(err, &ce) {
		msg = ce.Message
	}
	if _, uerr := e.sessions.Update(rs.id, func(s *core.Session) error {
		return s.Fail(kind, msg)
	}); uerr != nil {
		return
	}

	e.logger.Error("Session failed", "session_id", rs.id, "kind", string(kind), "error", err.Error())
	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{SessionID: rs.id, Err: err, ErrorKind: kind}); cbErr != nil {
		e.logger.Warn("Error callback failed", "session_id", rs.id, "error", cbErr.Error())
	}
	e.stateChanged(ctx, rs.id, core.StatusProcessing, core.StatusError, kind)
}
