package core

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/encodeous/tint"
	"github.com/encodeous/weft/state"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 10 * time.Second
	tick    = 20 * time.Millisecond
)

func testLogger(prefix string) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:        slog.LevelDebug,
		CustomPrefix: prefix,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == "time" {
				return slog.Attr{}
			}
			return attr
		},
	}))
}

// Harness runs a controller and any number of routers on loopback listeners
type Harness struct {
	t          *testing.T
	Controller *Controller
	Routers    map[state.NodeId]*Router
	RoutesDir  string
}

func NewHarness(t *testing.T, links ...state.Edge) *Harness {
	h := &Harness{
		t:         t,
		Routers:   make(map[state.NodeId]*Router),
		RoutesDir: t.TempDir(),
	}
	h.Controller = NewController(state.ControllerCfg{
		Bind:      "127.0.0.1:0",
		RoutesDir: h.RoutesDir,
		Links:     links,
	}, testLogger("controller"))
	require.NoError(t, h.Controller.Start(context.Background()))
	return h
}

func (h *Harness) AddRouter(name state.NodeId) *Router {
	cfg := state.RouterCfg{
		Id:         name,
		Ip:         "127.0.0.1",
		Controller: h.Controller.Addr().String(),
	}
	r := startRouter(h.t, cfg)
	h.Routers[name] = r
	return r
}

// WaitPath blocks until src routes to dst through exactly path, an empty path waits for dst to be unreachable
func (h *Harness) WaitPath(src, dst state.NodeId, path ...state.NodeId) {
	r := h.Routers[src]
	require.Eventually(h.t, func() bool {
		route, ok := r.Routes().Lookup(dst)
		if !ok {
			return false
		}
		return slices.Equal(route.Hops(), path)
	}, waitFor, tick, "%s never routed to %s via %v, last table %+v", src, dst, path, r.Routes())
}

// WaitAbsent blocks until dst is no longer in the table of src
func (h *Harness) WaitAbsent(src, dst state.NodeId) {
	r := h.Routers[src]
	require.Eventually(h.t, func() bool {
		_, ok := r.Routes().Lookup(dst)
		return !ok
	}, waitFor, tick)
}

func (h *Harness) Stop() {
	for _, r := range h.Routers {
		r.Stop()
	}
	h.Controller.Stop()
}

func startRouter(t *testing.T, cfg state.RouterCfg) *Router {
	r, err := NewRouter(cfg, testLogger(string(cfg.Id)))
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	return r
}

// installRoutes computes tables for routers joined by edges and hands them over without a controller
func installRoutes(t *testing.T, routers []*Router, edges ...state.Edge) {
	topo := NewTopology(nil)
	for _, r := range routers {
		topo.AddNode(r.Self())
	}
	for _, e := range edges {
		require.NoError(t, topo.AddEdge(e.U, e.V, e.Weight))
	}
	for _, r := range routers {
		tbl, ok := topo.RouteTableFor(r.Self().Name)
		require.True(t, ok)
		r.routes.Replace(tbl)
	}
}

func waitDelivery(t *testing.T, r *Router) state.Delivery {
	select {
	case d := <-r.Deliveries():
		return d
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for a delivery on %s", r.Self().Name)
	}
	return state.Delivery{}
}

func expectNoDelivery(t *testing.T, r *Router, wait time.Duration) {
	select {
	case d := <-r.Deliveries():
		t.Fatalf("unexpected delivery on %s: %q", r.Self().Name, d.Payload)
	case <-time.After(wait):
	}
}
