// Package saga implements the orchestrated saga pattern: an ordered
// sequence of steps with compensating actions, executed by a central
// coordinator. When a step fails, the effects of all previously
// succeeded steps are undone by running their compensations in
// reverse order.
package saga

import (
	"context"
	"time"

	"github.com/cafeteria/ordering-system/shared/models"
	"github.com/cafeteria/ordering-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Status represents the state of a saga execution
type Status string

const (
	StatusInitiated    Status = "initiated"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusCompensating Status = "compensating"
	StatusCompensated  Status = "compensated"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether the status is final
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated || s == StatusFailed
}

// Step is a named unit of work in a saga. Execute performs the forward
// action; Compensate semantically undoes a committed Execute. Compensate
// must be idempotent: running it again after a successful compensation
// leaves state unchanged. Steps must not assume the orchestrator retries
// them.
type Step interface {
	Name() string
	Execute(ctx context.Context, sc *Context) error
	Compensate(ctx context.Context, sc *Context) error
}

// StepError is the serializable record of a step or compensation failure
type StepError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// StepRecord is the per-step audit entry of an execution
type StepRecord struct {
	Name              string     `json:"name"`
	Executed          bool       `json:"executed"`
	Compensated       bool       `json:"compensated"`
	Error             *StepError `json:"error,omitempty"`
	CompensationError *StepError `json:"compensation_error,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	CompensatedAt     *time.Time `json:"compensated_at,omitempty"`
}

// Execution is the audit record of one saga run. It is mutated only by
// the orchestrator and becomes immutable once Status is terminal.
type Execution struct {
	ID         models.ID     `json:"id"`
	Name       string        `json:"name"`
	Status     Status        `json:"status"`
	Steps      []*StepRecord `json:"steps"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Orchestrator executes an ordered list of steps against a shared
// context, compensating in reverse order on failure. One Run is fully
// synchronous on the calling goroutine; concurrent runs are independent.
type Orchestrator struct {
	name  string
	steps []Step
}

// NewOrchestrator creates an orchestrator for a non-empty, uniquely
// named step list.
func NewOrchestrator(name string, steps ...Step) (*Orchestrator, error) {
	if name == "" {
		return nil, errors.New("saga name is required")
	}
	if len(steps) == 0 {
		return nil, errors.New("saga requires at least one step")
	}

	seen := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if step.Name() == "" {
			return nil, errors.New("saga step name is required")
		}
		if _, dup := seen[step.Name()]; dup {
			return nil, errors.Errorf("duplicate saga step name %q", step.Name())
		}
		seen[step.Name()] = struct{}{}
	}

	return &Orchestrator{name: name, steps: steps}, nil
}

// Run executes the saga against sc. The returned Execution carries the
// full step trail regardless of outcome. The error is nil only when the
// execution completed; otherwise it is an *ExecutionError whose Status
// tells whether rollback fully succeeded (compensated) or not (failed).
func (o *Orchestrator) Run(ctx context.Context, sc *Context) (*Execution, error) {
	ctx, span := telemetry.StartSpan(ctx, "saga.run",
		trace.WithAttributes(attribute.String("saga.name", o.name)),
	)
	defer span.End()

	exec := &Execution{
		ID:        models.GenerateUUID(),
		Name:      o.name,
		Status:    StatusInitiated,
		Steps:     make([]*StepRecord, len(o.steps)),
		StartedAt: time.Now(),
	}
	for i, step := range o.steps {
		exec.Steps[i] = &StepRecord{Name: step.Name()}
	}

	exec.Status = StatusInProgress

	failedIdx := -1
	var stepErr error
	for i, step := range o.steps {
		record := exec.Steps[i]
		now := time.Now()
		record.StartedAt = &now

		if err := o.executeStep(ctx, step, sc); err != nil {
			record.Error = &StepError{Kind: classifyError(err), Message: err.Error()}
			failedIdx = i
			stepErr = err
			break
		}

		record.Executed = true
		finished := time.Now()
		record.FinishedAt = &finished
	}

	if failedIdx < 0 {
		exec.Status = StatusCompleted
		exec.FinishedAt = time.Now()
		o.recordOutcome(ctx, exec)
		return exec, nil
	}

	exec.Status = StatusCompensating
	compensationFailed := o.compensate(ctx, exec, sc, failedIdx)

	if compensationFailed {
		exec.Status = StatusFailed
	} else {
		exec.Status = StatusCompensated
	}
	exec.FinishedAt = time.Now()
	o.recordOutcome(ctx, exec)

	span.RecordError(stepErr)

	return exec, &ExecutionError{
		SagaName:   o.name,
		FailedStep: o.steps[failedIdx].Name(),
		Status:     exec.Status,
		cause:      stepErr,
	}
}

func (o *Orchestrator) executeStep(ctx context.Context, step Step, sc *Context) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.step",
		trace.WithAttributes(
			attribute.String("saga.name", o.name),
			attribute.String("saga.step", step.Name()),
		),
	)
	defer span.End()

	if err := step.Execute(ctx, sc); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// compensate rolls back every executed step in strictly reverse order,
// starting from the last step that succeeded. A failing compensation is
// recorded but does not stop the remaining rollback: every committed
// step gets its chance to be undone. Returns true if any compensation
// failed.
func (o *Orchestrator) compensate(ctx context.Context, exec *Execution, sc *Context, failedIdx int) bool {
	anyFailed := false

	for i := failedIdx - 1; i >= 0; i-- {
		record := exec.Steps[i]
		if !record.Executed || record.Compensated {
			continue
		}

		if err := o.compensateStep(ctx, o.steps[i], sc); err != nil {
			compErr := &CompensationError{Step: o.steps[i].Name(), cause: err}
			record.CompensationError = &StepError{Kind: KindCompensation, Message: compErr.Error()}
			anyFailed = true
			continue
		}

		record.Compensated = true
		now := time.Now()
		record.CompensatedAt = &now
	}

	return anyFailed
}

func (o *Orchestrator) compensateStep(ctx context.Context, step Step, sc *Context) error {
	ctx, span := telemetry.StartSpan(ctx, "saga.compensate",
		trace.WithAttributes(
			attribute.String("saga.name", o.name),
			attribute.String("saga.step", step.Name()),
		),
	)
	defer span.End()

	if err := step.Compensate(ctx, sc); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (o *Orchestrator) recordOutcome(ctx context.Context, exec *Execution) {
	telemetry.RecordCounter(ctx, "saga_executions_total", "Completed saga runs by outcome", 1,
		attribute.String("saga", o.name),
		attribute.String("status", string(exec.Status)),
	)
	telemetry.RecordHistogram(ctx, "saga_duration_seconds", "Saga run duration",
		exec.FinishedAt.Sub(exec.StartedAt).Seconds(),
		attribute.String("saga", o.name),
	)
}
