package state

import (
	"context"
	"log/slog"
)

// Env can be read from any Goroutine. Closures sent through DispatchChannel run on the single goroutine
// that owns the mutable state.
type Env struct {
	DispatchChannel chan<- func() error
	Context         context.Context
	Cancel          context.CancelCauseFunc
	Log             *slog.Logger
}

func NewEnv(ctx context.Context, log *slog.Logger) (*Env, <-chan func() error) {
	ctx, cancel := context.WithCancelCause(ctx)
	dispatch := make(chan func() error, DispatchBuffer)
	return &Env{
		DispatchChannel: dispatch,
		Context:         ctx,
		Cancel:          cancel,
		Log:             log,
	}, dispatch
}
