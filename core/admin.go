package core

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/encodeous/weft/perf"
	"github.com/encodeous/weft/state"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// serveAdmin serves handler on l until ctx is done
func serveAdmin(ctx context.Context, l net.Listener, handler http.Handler, log *slog.Logger) {
	hSrv := http.Server{
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		BaseContext:       func(l net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("admin api listening", "addr", l.Addr().String())
		if err := hSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error serving http", "err", err)
		}
	}()
	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hSrv.Shutdown(sctx)
	<-done
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func healthz(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(name + "\n"))
	}
}

func mountDebug(mux chi.Router) {
	mux.Handle("/debug/metrics", perf.Handler())
	mux.Handle("/debug/vars", expvar.Handler())
}

// AdminHandler exposes the topology, the route tables and the runtime link operations
func (c *Controller) AdminHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/healthz", healthz("weft controller"))
	mux.Handle("/metrics", promhttp.HandlerFor(c.metrics.registry, promhttp.HandlerOpts{}))
	mountDebug(mux)

	mux.Get("/topology", func(w http.ResponseWriter, r *http.Request) {
		view, err := c.Topology()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})
	mux.Get("/nodes", func(w http.ResponseWriter, r *http.Request) {
		nodes, err := c.Registered()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, nodes)
	})
	mux.Get("/routes", func(w http.ResponseWriter, r *http.Request) {
		tables, err := c.Tables()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, tables)
	})
	mux.Get("/routes/{node}", func(w http.ResponseWriter, r *http.Request) {
		tables, err := c.Tables()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		tbl, ok := tables[state.NodeId(chi.URLParam(r, "node"))]
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("node not found"))
			return
		}
		writeJSON(w, http.StatusOK, tbl)
	})
	mux.Post("/links", func(w http.ResponseWriter, r *http.Request) {
		var edge state.Edge
		if err := json.NewDecoder(r.Body).Decode(&edge); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := state.EdgeValidator(edge); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := c.AddLink(edge.U, edge.V, edge.Weight); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, edge)
	})
	mux.Delete("/links/{u}/{v}", func(w http.ResponseWriter, r *http.Request) {
		ok, err := c.RemoveLink(state.NodeId(chi.URLParam(r, "u")), state.NodeId(chi.URLParam(r, "v")))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("link not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Delete("/nodes/{node}", func(w http.ResponseWriter, r *http.Request) {
		ok, err := c.Disconnect(state.NodeId(chi.URLParam(r, "node")))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("node not registered"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// AdminHandler exposes the router's identity and its current route table
func (r *Router) AdminHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/healthz", healthz("weft router "+string(r.self.Name)))
	mountDebug(mux)
	mux.Get("/self", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, r.Self())
	})
	mux.Get("/routes", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, r.Routes())
	})
	return mux
}
