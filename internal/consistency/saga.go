package consistency

import (
	"context"
	"log/slog"
)

// Step is one write in a multi-document change. Compensate undoes Action
// and may be nil when there is nothing to undo.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs steps in order. When a step fails, the steps that already
// completed are compensated in reverse order and the failing step's error
// is returned unwrapped, since callers surface it to clients; the step name
// goes to the log. Compensation failures are logged and otherwise ignored.
type Saga struct {
	name   string
	steps  []Step
	logger *slog.Logger
}

// NewSaga creates a named saga
func NewSaga(name string, logger *slog.Logger, steps ...Step) *Saga {
	return &Saga{
		name:   name,
		steps:  steps,
		logger: logger.With(slog.String("saga", name)),
	}
}

// Run executes the saga
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Action(ctx)
		if err == nil {
			continue
		}

		s.logger.Warn("saga step failed, compensating",
			slog.String("step", step.Name),
			slog.Int("completed", i),
			slog.Any("error", err))
		s.compensate(ctx, s.steps[:i])
		return err
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) {
	// Compensation must run even if the request context was cancelled
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				slog.String("step", step.Name),
				slog.Any("error", err))
		}
	}
}
