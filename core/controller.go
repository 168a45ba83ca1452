package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"reflect"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/state"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var ErrControllerStopped = errors.New("controller stopped")

// Controller is the control plane. It owns the topology and the registry of live router links, both of
// which are only accessed from the dispatch loop.
type Controller struct {
	*state.Env
	cfg      state.ControllerCfg
	dispatch <-chan func() error
	listener net.Listener
	admin    net.Listener

	topo     *Topology
	registry *Registry
	// configured links, applied whenever both endpoints are registered
	links map[state.Pair[state.NodeId, state.NodeId]]int

	metrics  *controllerMetrics
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// TopologyView is a point in time copy of the graph
type TopologyView struct {
	Nodes   []state.Node `json:"nodes"`
	Edges   []state.Edge `json:"edges"`
	Pending []state.Edge `json:"pending"`
}

func NewController(cfg state.ControllerCfg, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		Env:      &state.Env{Log: log},
		cfg:      cfg,
		topo:     NewTopology(log),
		registry: NewRegistry(),
		links:    make(map[state.Pair[state.NodeId, state.NodeId]]int),
		metrics:  newControllerMetrics(),
	}
	for _, l := range cfg.Links {
		c.links[state.MakeSortedPair(l.U, l.V)] = l.Weight
	}
	return c
}

// Start binds the listener and runs the controller until ctx is cancelled or Stop is called
func (c *Controller) Start(ctx context.Context) error {
	env, dispatch := state.NewEnv(ctx, c.Log)
	c.Env = env
	c.dispatch = dispatch

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", c.cfg.Bind)
	if err != nil {
		c.Cancel(err)
		return fmt.Errorf("failed to listen on %s: %w", c.cfg.Bind, err)
	}
	c.listener = listener

	if c.cfg.AdminBind != "" {
		c.admin, err = lc.Listen(ctx, "tcp", c.cfg.AdminBind)
		if err != nil {
			c.Cancel(err)
			_ = listener.Close()
			return fmt.Errorf("failed to listen on %s: %w", c.cfg.AdminBind, err)
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			serveAdmin(c.Context, c.admin, c.AdminHandler(), c.Log)
		}()
	}

	c.Log.Info("controller listening", "addr", listener.Addr().String())
	c.wg.Add(2)
	go c.mainLoop()
	go c.acceptLoop()
	c.RepeatTask(c.logSummary, state.SummaryInterval)
	return nil
}

func (c *Controller) logSummary() error {
	c.Log.Debug("topology summary", "routers", c.registry.Len(), "edges", len(c.topo.Edges()), "pending", len(c.links))
	return nil
}

func (c *Controller) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

func (c *Controller) AdminAddr() net.Addr {
	if c.admin == nil {
		return nil
	}
	return c.admin.Addr()
}

func (c *Controller) Metrics() prometheus.Gatherer {
	return c.metrics.registry
}

// Stop closes the listener and every control link, then waits for the controller goroutines
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.Cancel == nil {
			return
		}
		c.Cancel(ErrControllerStopped)
		if c.listener != nil {
			_ = c.listener.Close()
		}
		c.wg.Wait()
		c.Log.Info("controller stopped")
	})
}

func (c *Controller) mainLoop() {
	defer c.wg.Done()
	c.Log.Debug("started main loop")
	for {
		select {
		case fun := <-c.dispatch:
			start := time.Now()
			err := fun()
			if err != nil {
				c.Log.Error("error occurred during dispatch", "error", err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*50 {
				c.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(c.dispatch))
			}
		case <-c.Context.Done():
			goto endLoop
		}
	}
endLoop:
	c.Log.Info("stopped main loop", "reason", context.Cause(c.Context).Error())
	_ = c.listener.Close()
	c.registry.CloseAll()
	c.metrics.routers.Set(0)
}

func (c *Controller) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if c.Context.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			c.Log.Warn("failed to accept connection", "err", err)
			continue
		}
		c.handleConn(NewLink(conn))
	}
}

// handleConn authenticates a new connection then hands it to the dispatch loop for registration
func (c *Controller) handleConn(link *Link) {
	log := c.Log.With("link", link.Id().String(), "remote", link.RemoteAddr().String())

	// unblock the read if the controller stops mid handshake
	stop := context.AfterFunc(c.Context, func() { _ = link.Close() })
	node, err := c.authenticate(link)
	stop()
	if err != nil {
		log.Warn("dropping connection, authentication failed", "err", err)
		c.metrics.rejected.Inc()
		_ = link.Close()
		return
	}

	_, err = c.DispatchWait(func() (any, error) {
		c.register(node, link)
		return nil, nil
	})
	if err != nil {
		_ = link.Close()
		return
	}
	c.wg.Add(1)
	go c.monitor(node, link)
}

func (c *Controller) authenticate(link *Link) (state.Node, error) {
	var node state.Node
	if err := link.SetReadDeadline(time.Now().Add(state.AuthTimeout)); err != nil {
		return node, state.Transient("authenticate", err)
	}
	if err := link.ReadMsg(&node); err != nil {
		return node, err
	}
	if err := link.SetReadDeadline(time.Time{}); err != nil {
		return node, state.Transient("authenticate", err)
	}
	if err := state.NodeValidator(node); err != nil {
		return node, state.Protocol("authenticate", err)
	}
	return node, nil
}

// monitor supervises the liveness prober and the inbound reader of a registered link. When either stops,
// the link is closed and the router is deregistered.
func (c *Controller) monitor(node state.Node, link *Link) {
	defer c.wg.Done()
	log := c.Log.With("node", node.Name, "link", link.Id().String())

	eg, ctx := errgroup.WithContext(c.Context)
	eg.Go(func() error {
		return c.probe(ctx, link)
	})
	eg.Go(func() error {
		return c.drain(log, link)
	})
	eg.Go(func() error {
		<-ctx.Done()
		_ = link.Close()
		return nil
	})
	err := eg.Wait()
	log.Info("control link closed", "reason", err)

	c.Dispatch(func() error {
		c.deregister(node.Name, link)
		return nil
	})
}

func (c *Controller) probe(ctx context.Context, link *Link) error {
	ticker := time.NewTicker(state.ProbeDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := link.WriteKeepalive(); err != nil {
				return fmt.Errorf("liveness probe failed: %w", err)
			}
		}
	}
}

// drain reads whatever the router sends. The control link carries no requests, frames are only logged.
func (c *Controller) drain(log *slog.Logger, link *Link) error {
	for {
		var frame json.RawMessage
		err := link.ReadMsg(&frame)
		if errors.Is(err, state.ErrMalformedFrame) {
			log.Warn("dropping malformed frame", "err", err)
			continue
		}
		if err != nil {
			return err
		}
		log.Debug("frame from router", "frame", string(frame))
	}
}

func (c *Controller) register(node state.Node, link *Link) {
	if old := c.registry.Add(node, link); old != nil {
		c.Log.Warn("router registered again, closing previous link", "node", node.Name, "old", old.Id().String())
		_ = old.Close()
	}
	c.topo.AddNode(node)
	c.applyLinks()
	c.metrics.routers.Set(float64(c.registry.Len()))
	c.Log.Info("router registered", "node", node.Name, "addr", node.AddrPort(), "link", link.Id().String())
	c.redistribute()
}

// deregister removes name if link is still its current link, nil matches any link
func (c *Controller) deregister(name state.NodeId, link *Link) bool {
	if !c.registry.Remove(name, link) {
		return false
	}
	c.topo.RemoveNode(name)
	if c.cfg.RoutesDir != "" {
		if err := state.RemoveRouteSnapshot(c.cfg.RoutesDir, name); err != nil {
			c.Log.Warn("failed to remove route snapshot", "node", name, "err", err)
		}
	}
	c.metrics.routers.Set(float64(c.registry.Len()))
	c.Log.Info("router removed", "node", name)
	c.redistribute()
	return true
}

func (c *Controller) applyLinks() {
	for pair, w := range c.links {
		if c.topo.HasNode(pair.V1) && c.topo.HasNode(pair.V2) {
			if err := c.topo.AddEdge(pair.V1, pair.V2, w); err != nil {
				c.Log.Warn("invalid link", "u", pair.V1, "v", pair.V2, "err", err)
			}
		}
	}
}

// redistribute recomputes every route table and pushes the ones that changed
func (c *Controller) redistribute() {
	tables := c.topo.AllRouteTables()
	c.metrics.recomputes.Inc()

	for _, name := range c.registry.Names() {
		tbl, ok := tables[name]
		if !ok {
			continue
		}
		if c.cfg.RoutesDir != "" {
			if err := state.WriteRouteSnapshot(c.cfg.RoutesDir, tbl); err != nil {
				c.Log.Warn("failed to write route snapshot", "node", name, "err", err)
			}
		}
		data, err := json.Marshal(tbl)
		if err != nil {
			c.Log.Error("failed to encode route table", "node", name, "err", err)
			continue
		}
		if bytes.Equal(data, c.registry.lastPushed(name)) {
			c.metrics.pushes.WithLabelValues("unchanged").Inc()
			continue
		}
		link, _ := c.registry.Get(name)
		if err = link.WriteFrame(data); err != nil {
			// the monitor sees the closed link and removes the router
			c.Log.Warn("failed to push route table", "node", name, "err", err)
			c.metrics.pushes.WithLabelValues("failed").Inc()
			_ = link.Close()
			continue
		}
		c.registry.setPushed(name, data)
		c.metrics.pushes.WithLabelValues("ok").Inc()
		c.Log.Debug("pushed route table", "node", name, "routes", len(tbl.Routes))
	}
}

func dispatchWait[T any](e *state.Env, fun func() (T, error)) (T, error) {
	res, err := e.DispatchWait(func() (any, error) {
		return fun()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// AddLink adds or reweights the u-v link. It takes effect once both routers are registered.
func (c *Controller) AddLink(u, v state.NodeId, weight int) error {
	if err := state.EdgeValidator(state.Edge{U: u, V: v, Weight: weight}); err != nil {
		return err
	}
	_, err := dispatchWait(c.Env, func() (any, error) {
		c.links[state.MakeSortedPair(u, v)] = weight
		if c.topo.HasNode(u) && c.topo.HasNode(v) {
			if err := c.topo.AddEdge(u, v, weight); err != nil {
				return nil, err
			}
			c.redistribute()
		}
		return nil, nil
	})
	return err
}

func (c *Controller) RemoveLink(u, v state.NodeId) (bool, error) {
	return dispatchWait(c.Env, func() (bool, error) {
		key := state.MakeSortedPair(u, v)
		_, configured := c.links[key]
		delete(c.links, key)
		if c.topo.RemoveEdge(u, v) {
			c.redistribute()
			return true, nil
		}
		return configured, nil
	})
}

// Disconnect closes the control link of name and removes it from the topology
func (c *Controller) Disconnect(name state.NodeId) (bool, error) {
	return dispatchWait(c.Env, func() (bool, error) {
		link, ok := c.registry.Get(name)
		if !ok {
			return false, nil
		}
		c.deregister(name, nil)
		_ = link.Close()
		return true, nil
	})
}

// Registered returns the nodes with a live control link, sorted by name
func (c *Controller) Registered() ([]state.Node, error) {
	return dispatchWait(c.Env, func() ([]state.Node, error) {
		out := make([]state.Node, 0, c.registry.Len())
		for _, name := range c.registry.Names() {
			n, _ := c.registry.Node(name)
			out = append(out, n)
		}
		return out, nil
	})
}

func (c *Controller) Tables() (map[state.NodeId]state.RouteTable, error) {
	return dispatchWait(c.Env, func() (map[state.NodeId]state.RouteTable, error) {
		return c.topo.AllRouteTables(), nil
	})
}

func (c *Controller) Topology() (TopologyView, error) {
	return dispatchWait(c.Env, func() (TopologyView, error) {
		view := TopologyView{
			Nodes:   c.topo.Nodes(),
			Edges:   c.topo.Edges(),
			Pending: make([]state.Edge, 0),
		}
		for _, pair := range slices.SortedFunc(maps.Keys(c.links), comparePairs) {
			if _, ok := c.topo.Weight(pair.V1, pair.V2); !ok {
				view.Pending = append(view.Pending, state.Edge{U: pair.V1, V: pair.V2, Weight: c.links[pair]})
			}
		}
		return view, nil
	})
}

func comparePairs(a, b state.Pair[state.NodeId, state.NodeId]) int {
	if a.V1 != b.V1 {
		if a.V1 < b.V1 {
			return -1
		}
		return 1
	}
	if a.V2 < b.V2 {
		return -1
	} else if a.V2 > b.V2 {
		return 1
	}
	return 0
}
