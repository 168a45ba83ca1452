package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/state"
)

func (r *Router) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if r.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Warn("failed to accept connection", "err", err)
			continue
		}
		r.wg.Add(1)
		go r.handleConn(NewLink(conn))
	}
}

// handleConn processes the single message carried by an inbound connection
func (r *Router) handleConn(link *Link) {
	defer r.wg.Done()
	defer link.Close()
	stop := context.AfterFunc(r.ctx, func() { _ = link.Close() })
	defer stop()

	start := time.Now()
	log := r.log.With("remote", link.RemoteAddr().String())

	err := link.SetReadDeadline(start.Add(state.RelayReadTimeout))
	if err == nil {
		var msg state.Message
		err = link.ReadMsg(&msg)
		if err == nil {
			err = r.handleMessage(r.ctx, msg)
		}
	}
	perf.RelayLatency.Add(float64(time.Since(start).Microseconds()))
	if err == nil {
		return
	}

	perf.MessagesDropped.Add(1)
	logDrop(log, r.ctx.Err() != nil, err)
}

func logDrop(log *slog.Logger, stopping bool, err error) {
	switch {
	case stopping:
		log.Debug("dropping message, router is stopping", "err", err)
	case state.IsCrypto(err):
		log.Warn("dropping message, failed to decrypt", "err", err)
	case errors.Is(err, state.ErrMisrouted):
		log.Warn("Forbidden, dropping misrouted message", "err", err)
	case state.IsProtocol(err):
		log.Warn("dropping message", "err", err)
	case state.IsTransient(err):
		log.Warn("dropping message, failed to forward", "err", err)
	default:
		log.Warn("dropping message", "err", err)
	}
}

// handleMessage checks that this router is the current hop, then either delivers or forwards msg
func (r *Router) handleMessage(ctx context.Context, msg state.Message) error {
	if len(msg.Path) == 0 {
		return state.Protocol("relay", state.ErrPathExhausted)
	}
	head := msg.Path[0]
	if head.Name != r.self.Name {
		return state.Protocol("relay", fmt.Errorf("%w: expected %s, this is %s", state.ErrMisrouted, head.Name, r.self.Name))
	}

	msg.Path = msg.Path[1:]
	if len(msg.Path) == 0 {
		return r.deliver(msg)
	}

	if err := r.forward(ctx, msg); err != nil {
		return err
	}
	perf.MessagesRelayed.Add(1)
	r.log.Debug("relayed message", "next", msg.Path[0].Name, "remaining", len(msg.Path))
	return nil
}

func (r *Router) deliver(msg state.Message) error {
	key, err := state.UnwrapKey(msg.Key, r.key)
	if err != nil {
		return state.Crypto("deliver", err)
	}
	payload, err := state.Decrypt(msg.Message, key)
	if err != nil {
		return state.Crypto("deliver", err)
	}

	d := state.Delivery{Payload: payload, IsFile: msg.IsFile, ReceivedAt: time.Now()}
	if d.IsFile && r.cfg.InboxDir != "" {
		path, err := r.writeInbox(d)
		if err != nil {
			r.log.Warn("failed to write received file", "err", err)
		} else {
			r.log.Info("received file", "path", path, "size", len(payload))
		}
	}
	select {
	case r.deliveries <- d:
		perf.MessagesDelivered.Add(1)
	default:
		perf.MessagesDropped.Add(1)
		r.log.Warn("delivery buffer is full, dropping message", "size", len(payload))
	}
	return nil
}

func (r *Router) writeInbox(d state.Delivery) (string, error) {
	if err := os.MkdirAll(r.cfg.InboxDir, 0700); err != nil {
		return "", err
	}
	path := filepath.Join(r.cfg.InboxDir, fmt.Sprintf("file_%d.bin", d.ReceivedAt.UnixNano()))
	return path, os.WriteFile(path, d.Payload, 0600)
}
