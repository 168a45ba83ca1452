package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/encodeous/tint"
	"github.com/encodeous/weft/state"
	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the process logger. Console output is prefixed with the component name, logPath
// optionally adds a plain text file sink.
func NewLogger(prefix string, level slog.Level, logPath string) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// RunController runs a controller until it receives a shutdown signal
func RunController(cfgPath string, level slog.Level, logPath string) error {
	cfg, err := state.ReadControllerConfig(cfgPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	log, err := NewLogger("controller", level, cfg.LogPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	c := NewController(*cfg, log)
	if err = c.Start(ctx); err != nil {
		return err
	}
	log.Info("weft controller has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")
	select {
	case <-ctx.Done():
	case <-c.Context.Done():
		log.Error("controller stopped unexpectedly", "reason", context.Cause(c.Context))
	}
	c.Stop()
	return nil
}

// RunRouter runs a router until it receives a shutdown signal. If interactive, send commands are read
// from stdin.
func RunRouter(cfgPath string, level slog.Level, logPath string, interactive bool) error {
	cfg, err := state.ReadRouterConfig(cfgPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	log, err := NewLogger(string(cfg.Id), level, cfg.LogPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	r, err := NewRouter(*cfg, log)
	if err != nil {
		return err
	}
	if err = r.Start(ctx); err != nil {
		return err
	}
	log.Info("weft router has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range r.Deliveries() {
			if d.IsFile {
				log.Info("received file", "size", len(d.Payload))
			} else {
				log.Info("received message", "message", string(d.Payload))
			}
		}
	}()
	if interactive {
		go SendLoop(ctx, r, os.Stdin, log)
	}

	select {
	case <-ctx.Done():
	case <-r.Done():
		log.Error("router stopped unexpectedly", "reason", context.Cause(r.ctx))
	}
	r.Stop()
	<-done
	return nil
}

// SendLoop reads one send command per line until in is exhausted or ctx is done
func SendLoop(ctx context.Context, r *Router, in io.Reader, log *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dst, payload, isFile, err := ParseCommand(line)
		if err != nil {
			log.Warn("invalid command", "err", err)
			continue
		}
		if err = r.Send(ctx, dst, payload, isFile); err != nil {
			log.Warn("failed to send", "dst", dst, "err", err)
		}
	}
}

var ErrInvalidCommand = errors.New("expected `<dest> <text>` or `:file <dest> <path>`")

// ParseCommand parses `<dest> <text>` or `:file <dest> <path>`, the file is read from disk
func ParseCommand(line string) (state.NodeId, []byte, bool, error) {
	if rest, ok := strings.CutPrefix(line, ":file "); ok {
		dst, file, ok := strings.Cut(strings.TrimSpace(rest), " ")
		file = strings.TrimSpace(file)
		if !ok || file == "" {
			return "", nil, false, ErrInvalidCommand
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", nil, false, fmt.Errorf("failed to read %s: %w", file, err)
		}
		return state.NodeId(dst), data, true, nil
	}
	dst, text, ok := strings.Cut(line, " ")
	if !ok || dst == "" {
		return "", nil, false, ErrInvalidCommand
	}
	return state.NodeId(dst), []byte(text), false, nil
}
