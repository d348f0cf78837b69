package consistency

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/boardgame-groups/internal/testutil"
)

func TestSagaRunsAllSteps(t *testing.T) {
	var log []string
	step := func(name string) Step {
		return Step{
			Name:       name,
			Action:     func(ctx context.Context) error { log = append(log, "do "+name); return nil },
			Compensate: func(ctx context.Context) error { log = append(log, "undo "+name); return nil },
		}
	}

	err := NewSaga("test", testutil.NopLogger(), step("a"), step("b")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"do a", "do b"}, log)
}

func TestSagaCompensatesInReverse(t *testing.T) {
	boom := errors.New("boom")
	var log []string
	ok := func(name string) Step {
		return Step{
			Name:       name,
			Action:     func(ctx context.Context) error { log = append(log, "do "+name); return nil },
			Compensate: func(ctx context.Context) error { log = append(log, "undo "+name); return nil },
		}
	}
	failing := Step{
		Name:       "c",
		Action:     func(ctx context.Context) error { return boom },
		Compensate: func(ctx context.Context) error { log = append(log, "undo c"); return nil },
	}

	err := NewSaga("test", testutil.NopLogger(), ok("a"), ok("b"), failing, ok("d")).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, []string{"do a", "do b", "undo b", "undo a"}, log)
}

func TestSagaCompensationFailureDoesNotMaskError(t *testing.T) {
	boom := errors.New("boom")
	undone := false
	logger, rec := testutil.NewLogRecorder()

	err := NewSaga("test", logger,
		Step{
			Name:       "a",
			Action:     func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("undo failed") },
		},
		Step{
			Name:       "b",
			Action:     func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { undone = true; return nil },
		},
		Step{Name: "c", Action: func(ctx context.Context) error { return boom }},
	).Run(context.Background())

	require.ErrorIs(t, err, boom)
	assert.True(t, undone)

	entry, ok := rec.Find("saga compensation failed")
	require.True(t, ok)
	assert.Equal(t, slog.LevelError, entry.Level)
	assert.Equal(t, "a", entry.Attrs["step"])
}

func TestSagaCompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensateErr error

	err := NewSaga("test", testutil.NopLogger(),
		Step{
			Name:       "a",
			Action:     func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensateErr = ctx.Err(); return nil },
		},
		Step{Name: "b", Action: func(ctx context.Context) error { cancel(); return ctx.Err() }},
	).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compensateErr)
}
