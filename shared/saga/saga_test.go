package saga

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStep is an instrumented step that records the order of its
// execute and compensate calls into a shared log.
type stubStep struct {
	name          string
	executeErr    error
	compensateErr error
	calls         *[]string
}

func (s *stubStep) Name() string { return s.name }

func (s *stubStep) Execute(ctx context.Context, sc *Context) error {
	*s.calls = append(*s.calls, "execute:"+s.name)
	if s.executeErr != nil {
		return s.executeErr
	}
	sc.Set(s.name+"_done", true)
	return nil
}

func (s *stubStep) Compensate(ctx context.Context, sc *Context) error {
	*s.calls = append(*s.calls, "compensate:"+s.name)
	if s.compensateErr != nil {
		return s.compensateErr
	}
	sc.Delete(s.name + "_done")
	return nil
}

func newSteps(calls *[]string, names ...string) []Step {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = &stubStep{name: name, calls: calls}
	}
	return steps
}

func TestNewOrchestrator_Validation(t *testing.T) {
	var calls []string

	tests := []struct {
		name        string
		sagaName    string
		steps       []Step
		expectedErr string
	}{
		{
			name:        "empty saga name",
			sagaName:    "",
			steps:       newSteps(&calls, "a"),
			expectedErr: "saga name is required",
		},
		{
			name:        "no steps",
			sagaName:    "empty",
			steps:       nil,
			expectedErr: "at least one step",
		},
		{
			name:        "duplicate step names",
			sagaName:    "dup",
			steps:       newSteps(&calls, "a", "a"),
			expectedErr: "duplicate saga step name",
		},
		{
			name:     "valid",
			sagaName: "ok",
			steps:    newSteps(&calls, "a", "b"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrchestrator(tt.sagaName, tt.steps...)
			if tt.expectedErr != "" {
				assert.Nil(t, o)
				assert.ErrorContains(t, err, tt.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, o)
		})
	}
}

func TestRun_HappyPath(t *testing.T) {
	var calls []string
	o, err := NewOrchestrator("happy", newSteps(&calls, "validate", "reserve", "create", "confirm")...)
	require.NoError(t, err)

	sc := NewContext()
	exec, err := o.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, exec.Status)
	assert.True(t, exec.Status.IsTerminal())
	assert.NotEmpty(t, exec.ID.String())
	assert.Equal(t, "happy", exec.Name)
	require.Len(t, exec.Steps, 4)
	for _, record := range exec.Steps {
		assert.True(t, record.Executed, record.Name)
		assert.False(t, record.Compensated, record.Name)
		assert.Nil(t, record.Error, record.Name)
	}

	assert.Equal(t, []string{
		"execute:validate", "execute:reserve", "execute:create", "execute:confirm",
	}, calls)

	// Step writes are visible after the run.
	assert.True(t, sc.Has("confirm_done"))
}

func TestRun_MidFailureRollsBackInReverseOrder(t *testing.T) {
	var calls []string
	steps := []Step{
		&stubStep{name: "validate", calls: &calls},
		&stubStep{name: "reserve", calls: &calls},
		&stubStep{name: "create", calls: &calls, executeErr: NewDomainError("stock unavailable")},
		&stubStep{name: "confirm", calls: &calls},
	}
	o, err := NewOrchestrator("rollback", steps...)
	require.NoError(t, err)

	exec, err := o.Run(context.Background(), NewContext())
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, StatusCompensated, execErr.Status)
	assert.Equal(t, "create", execErr.FailedStep)
	assert.True(t, IsDomainError(execErr))

	assert.Equal(t, StatusCompensated, exec.Status)
	require.Len(t, exec.Steps, 4)

	// Steps before the failure executed and were compensated.
	assert.True(t, exec.Steps[0].Executed)
	assert.True(t, exec.Steps[0].Compensated)
	assert.True(t, exec.Steps[1].Executed)
	assert.True(t, exec.Steps[1].Compensated)

	// The failing step is never compensated but keeps its error.
	assert.False(t, exec.Steps[2].Executed)
	assert.False(t, exec.Steps[2].Compensated)
	require.NotNil(t, exec.Steps[2].Error)
	assert.Equal(t, KindDomain, exec.Steps[2].Error.Kind)
	assert.Contains(t, exec.Steps[2].Error.Message, "stock unavailable")

	// Steps after the failure are untouched.
	assert.False(t, exec.Steps[3].Executed)
	assert.False(t, exec.Steps[3].Compensated)
	assert.Nil(t, exec.Steps[3].StartedAt)

	// Compensations ran strictly in reverse execution order.
	assert.Equal(t, []string{
		"execute:validate", "execute:reserve", "execute:create",
		"compensate:reserve", "compensate:validate",
	}, calls)
}

func TestRun_CompensationFailureEscalatesToFailed(t *testing.T) {
	var calls []string
	steps := []Step{
		&stubStep{name: "validate", calls: &calls},
		&stubStep{name: "reserve", calls: &calls, compensateErr: errors.New("release failed")},
		&stubStep{name: "create", calls: &calls},
		&stubStep{name: "confirm", calls: &calls, executeErr: NewOperationError(errors.New("io timeout"), "confirm write")},
	}
	o, err := NewOrchestrator("escalate", steps...)
	require.NoError(t, err)

	exec, err := o.Run(context.Background(), NewContext())
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, StatusFailed, execErr.Status)

	assert.Equal(t, StatusFailed, exec.Status)

	// Rollback was still attempted for every executed step despite the
	// compensation failure in the middle.
	assert.Equal(t, []string{
		"execute:validate", "execute:reserve", "execute:create", "execute:confirm",
		"compensate:create", "compensate:reserve", "compensate:validate",
	}, calls)

	assert.True(t, exec.Steps[0].Compensated)
	assert.False(t, exec.Steps[1].Compensated)
	require.NotNil(t, exec.Steps[1].CompensationError)
	assert.Equal(t, KindCompensation, exec.Steps[1].CompensationError.Kind)
	assert.Contains(t, exec.Steps[1].CompensationError.Message, "release failed")
	assert.True(t, exec.Steps[2].Compensated)
}

func TestRun_FirstStepFailureCompensatesNothing(t *testing.T) {
	var calls []string
	steps := []Step{
		&stubStep{name: "validate", calls: &calls, executeErr: NewDomainError("product not found")},
		&stubStep{name: "reserve", calls: &calls},
	}
	o, err := NewOrchestrator("first-fail", steps...)
	require.NoError(t, err)

	exec, err := o.Run(context.Background(), NewContext())
	require.Error(t, err)

	assert.Equal(t, StatusCompensated, exec.Status)
	assert.Equal(t, []string{"execute:validate"}, calls)
	assert.False(t, exec.Steps[0].Executed)
	assert.False(t, exec.Steps[1].Executed)
}

func TestCompensate_IsIdempotent(t *testing.T) {
	var calls []string
	step := &stubStep{name: "reserve", calls: &calls}

	sc := NewContext()
	require.NoError(t, step.Execute(context.Background(), sc))
	require.True(t, sc.Has("reserve_done"))

	require.NoError(t, step.Compensate(context.Background(), sc))
	stateAfterFirst := sc.Has("reserve_done")

	require.NoError(t, step.Compensate(context.Background(), sc))
	assert.Equal(t, stateAfterFirst, sc.Has("reserve_done"))
	assert.False(t, sc.Has("reserve_done"))
}

func TestRun_ContextSharedAcrossSteps(t *testing.T) {
	var calls []string
	o, err := NewOrchestrator("ctx", newSteps(&calls, "a", "b", "c")...)
	require.NoError(t, err)

	sc := NewContext()
	sc.Set("customer", "Ana")

	_, err = o.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, "Ana", sc.GetString("customer"))
	assert.True(t, sc.Has("a_done"))
	assert.True(t, sc.Has("b_done"))
	assert.True(t, sc.Has("c_done"))
}
