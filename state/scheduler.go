package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrDispatchClosed = errors.New("dispatch loop has stopped")

// Dispatch Dispatches the function to run on the main thread without waiting for it to complete
func (e *Env) Dispatch(fun func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// DispatchWait Dispatches the function to run on the main thread and wait for it to complete
func (e *Env) DispatchWait(fun func() (any, error)) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, ErrDispatchClosed
		}
	}()
	ret := make(chan Pair[any, error], 1)
	select {
	case e.DispatchChannel <- func() error {
		v, ferr := fun()
		ret <- Pair[any, error]{v, ferr}
		return nil
	}:
	case <-e.Context.Done():
		return nil, context.Cause(e.Context)
	}
	select {
	case r := <-ret:
		return r.V1, r.V2
	case <-e.Context.Done():
		return nil, context.Cause(e.Context)
	}
}

func (e *Env) repeatedTask(fun func() error, delay time.Duration) {
	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	for {
		select {
		case <-e.Context.Done():
			return
		case <-ticker.C:
			e.Dispatch(fun)
		}
	}
}

func (e *Env) RepeatTask(fun func() error, delay time.Duration) {
	go e.repeatedTask(fun, delay)
}
