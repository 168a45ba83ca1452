package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/state"
	"github.com/jellydator/ttlcache/v3"
)

var ErrRouterStopped = errors.New("router stopped")

// Router is a data plane agent. It keeps the route table pushed by the controller, sends messages along
// those routes and relays messages addressed through it.
type Router struct {
	cfg  state.RouterCfg
	self state.Node
	key  *state.PrivateKey
	log  *slog.Logger

	routes RouteCache
	// parsed public keys by their PEM text
	keys       *ttlcache.Cache[string, *state.PublicKey]
	deliveries chan state.Delivery

	ctx      context.Context
	cancel   context.CancelCauseFunc
	listener net.Listener
	admin    net.Listener

	mutex      sync.Mutex
	controller *Link

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewRouter(cfg state.RouterCfg, log *slog.Logger) (*Router, error) {
	if log == nil {
		log = slog.Default()
	}
	key := cfg.Key
	if key == nil {
		var err error
		key, err = state.GenerateKeypair()
		if err != nil {
			return nil, fmt.Errorf("failed to generate keypair: %w", err)
		}
		log.Info("generated a new keypair")
	}
	self := cfg.Node()
	pub, err := state.SerializePublic(key.Public())
	if err != nil {
		return nil, err
	}
	self.PublicKey = pub
	return &Router{
		cfg:  cfg,
		self: self,
		key:  key,
		log:  log,
		keys: ttlcache.New[string, *state.PublicKey](
			ttlcache.WithTTL[string, *state.PublicKey](state.KeyCacheTTL),
		),
		deliveries: make(chan state.Delivery, state.DeliveryBuffer),
	}, nil
}

// Start listens for inbound messages and, if a controller is configured, registers with it
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancelCause(ctx)

	lc := net.ListenConfig{}
	listener, err := lc.Listen(r.ctx, "tcp", r.self.AddrPort())
	if err != nil {
		r.cancel(err)
		return fmt.Errorf("failed to listen on %s: %w", r.self.AddrPort(), err)
	}
	r.listener = listener
	if r.self.Port == 0 {
		// bound to an ephemeral port, advertise the real one
		_, port, _ := net.SplitHostPort(listener.Addr().String())
		p, _ := strconv.ParseUint(port, 10, 16)
		r.self.Port = uint16(p)
	}
	r.log.Info("router listening", "addr", listener.Addr().String())

	r.wg.Add(2)
	go r.sweepKeys()
	go r.acceptLoop()

	if r.cfg.AdminBind != "" {
		r.admin, err = lc.Listen(r.ctx, "tcp", r.cfg.AdminBind)
		if err != nil {
			r.Stop()
			return fmt.Errorf("failed to listen on %s: %w", r.cfg.AdminBind, err)
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			serveAdmin(r.ctx, r.admin, r.AdminHandler(), r.log)
		}()
	}

	if r.cfg.Controller != "" {
		if err = r.ConnectToController(r.ctx); err != nil {
			r.Stop()
			return err
		}
	}
	return nil
}

// ConnectToController registers with the controller and listens for route tables. There is no
// reconnection, losing the controller leaves the last table in place.
func (r *Router) ConnectToController(ctx context.Context) error {
	link, err := DialLink(ctx, r.cfg.Controller)
	if err != nil {
		return err
	}
	if err = link.WriteMsg(r.self); err != nil {
		_ = link.Close()
		return fmt.Errorf("failed to authenticate with controller: %w", err)
	}

	r.mutex.Lock()
	prev := r.controller
	r.controller = link
	r.mutex.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	r.log.Info("connected to controller", "addr", r.cfg.Controller, "link", link.Id().String())
	r.wg.Add(1)
	go r.listenRoutes(link)
	return nil
}

func (r *Router) listenRoutes(link *Link) {
	defer r.wg.Done()
	stop := context.AfterFunc(r.ctx, func() { _ = link.Close() })
	defer stop()

	for {
		var table state.RouteTable
		err := link.ReadMsg(&table)
		if errors.Is(err, state.ErrMalformedFrame) {
			r.log.Warn("dropping malformed route table", "err", err)
			continue
		}
		if err != nil {
			if r.ctx.Err() == nil {
				r.log.Warn("lost connection to controller, not reconnecting", "err", err)
			}
			return
		}
		if table.Node.Name != r.self.Name {
			r.log.Warn("ignoring route table for another node", "owner", table.Node.Name)
			continue
		}
		version := r.routes.Replace(table)
		perf.RouteUpdates.Add(1)
		if r.cfg.RoutesDir != "" {
			if err = state.WriteRouteSnapshot(r.cfg.RoutesDir, table); err != nil {
				r.log.Warn("failed to write route snapshot", "err", err)
			}
		}
		r.log.Info("route table updated", "routes", len(table.Routes), "version", version)
	}
}

// Send encrypts payload for dst and hands it to the first hop of the route to dst
func (r *Router) Send(ctx context.Context, dst state.NodeId, payload []byte, isFile bool) error {
	route, ok := r.routes.Lookup(dst)
	if !ok || len(route.Path) < 2 {
		return fmt.Errorf("%w: %s", state.ErrNoRoute, dst)
	}

	symKey, err := state.GenerateSymmetricKey()
	if err != nil {
		return state.Crypto("send", err)
	}
	ciphertext, err := state.Encrypt(payload, symKey)
	if err != nil {
		return state.Crypto("send", err)
	}

	wrapped := ""
	if route.Destination.PublicKey == "" {
		r.log.Warn("destination has no public key, sending without a key", "dst", dst)
	} else {
		pub, err := r.publicKey(route.Destination.PublicKey)
		if err != nil {
			return state.Crypto("send", err)
		}
		wrapped, err = state.WrapKey(symKey, pub)
		if err != nil {
			return state.Crypto("send", err)
		}
	}

	msg := state.Message{
		Message: ciphertext,
		Path:    route.Path[1:],
		Key:     wrapped,
		IsFile:  isFile,
	}
	if err = r.forward(ctx, msg); err != nil {
		return err
	}
	perf.MessagesSent.Add(1)
	r.log.Debug("sent message", "dst", dst, "path", route.Hops(), "size", len(payload))
	return nil
}

// forward opens a fresh connection to the head of the path and writes msg as its only frame
func (r *Router) forward(ctx context.Context, msg state.Message) error {
	next := msg.Path[0]
	link, err := DialLink(ctx, next.AddrPort())
	if err != nil {
		return err
	}
	defer link.Close()
	return link.WriteMsg(msg)
}

func (r *Router) publicKey(text string) (*state.PublicKey, error) {
	if item := r.keys.Get(text); item != nil {
		return item.Value(), nil
	}
	pub, err := state.DeserializePublic(text)
	if err != nil {
		return nil, err
	}
	r.keys.Set(text, pub, ttlcache.DefaultTTL)
	return pub, nil
}

// sweepKeys evicts expired public keys until the router stops
func (r *Router) sweepKeys() {
	defer r.wg.Done()
	ticker := time.NewTicker(state.KeyCacheSweep)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.keys.DeleteExpired()
		}
	}
}

// Done is closed once the router has been cancelled, either by Stop or by its parent context
func (r *Router) Done() <-chan struct{} {
	return r.ctx.Done()
}

// Deliveries yields messages addressed to this router. It is closed by Stop.
func (r *Router) Deliveries() <-chan state.Delivery {
	return r.deliveries
}

func (r *Router) Routes() state.RouteTable {
	table, _ := r.routes.Snapshot()
	return table
}

func (r *Router) Self() state.Node {
	return r.self
}

func (r *Router) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *Router) AdminAddr() net.Addr {
	if r.admin == nil {
		return nil
	}
	return r.admin.Addr()
}

// Stop closes the listener and the controller link and waits for every worker
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		if r.listener == nil {
			if r.cancel != nil {
				r.cancel(ErrRouterStopped)
			}
			close(r.deliveries)
			return
		}
		r.cancel(ErrRouterStopped)
		_ = r.listener.Close()
		r.mutex.Lock()
		if r.controller != nil {
			_ = r.controller.Close()
		}
		r.mutex.Unlock()
		r.wg.Wait()
		close(r.deliveries)
		r.log.Info("router stopped")
	})
}
