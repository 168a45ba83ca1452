package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/encodeous/weft/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func quietRouter(t *testing.T, cfg state.RouterCfg) *Router {
	r, err := NewRouter(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return r
}

// finishes fails the test if fun does not return within waitFor
func finishes(t *testing.T, fun func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fun()
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("did not finish in time")
	}
}

func TestRouterStartStopRepeatedly(t *testing.T) {
	defer goleak.VerifyNone(t)
	key, err := state.GenerateKeypair()
	require.NoError(t, err)

	finishes(t, func() {
		for i := 0; i < 50; i++ {
			r := quietRouter(t, state.RouterCfg{Id: "A", Ip: "127.0.0.1", Key: key})
			if !assert.NoError(t, r.Start(context.Background())) {
				return
			}
			r.Stop()
		}
	})
}

func TestRouterStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := quietRouter(t, state.RouterCfg{Id: "A", Ip: "127.0.0.1"})
	assert.Nil(t, r.Addr())
	assert.Nil(t, r.AdminAddr())

	finishes(t, r.Stop)
	_, open := <-r.Deliveries()
	assert.False(t, open)
}

func TestRouterStartFailures(t *testing.T) {
	defer goleak.VerifyNone(t)
	key, err := state.GenerateKeypair()
	require.NoError(t, err)

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	unused := closed.Addr().String()
	require.NoError(t, closed.Close())

	cases := map[string]state.RouterCfg{
		"admin bind in use":     {Id: "A", Ip: "127.0.0.1", Key: key, AdminBind: taken.Addr().String()},
		"controller not around": {Id: "A", Ip: "127.0.0.1", Key: key, Controller: unused},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			r := quietRouter(t, cfg)
			finishes(t, func() {
				assert.Error(t, r.Start(context.Background()))
			})
			finishes(t, r.Stop)
		})
	}
}

func TestRouterDoneOnParentCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	r := quietRouter(t, state.RouterCfg{Id: "A", Ip: "127.0.0.1"})
	require.NoError(t, r.Start(ctx))

	cancel()
	select {
	case <-r.Done():
	case <-time.After(waitFor):
		t.Fatal("router did not observe cancellation")
	}
	finishes(t, r.Stop)
}

func TestLogDrop(t *testing.T) {
	tests := []struct {
		name     string
		stopping bool
		err      error
		level    string
		msg      string
	}{
		{"forward", false, state.Transient("dial", errors.New("connection refused")), "level=WARN", "failed to forward"},
		{"decrypt", false, state.Crypto("deliver", state.ErrDecrypt), "level=WARN", "failed to decrypt"},
		{"misrouted", false, state.Protocol("relay", state.ErrMisrouted), "level=WARN", "misrouted"},
		{"stopping", true, state.Transient("read", net.ErrClosed), "level=DEBUG", "router is stopping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			logDrop(log, tt.stopping, tt.err)
			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), tt.msg)
		})
	}
}
