package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency   = metric.NewHistogram("1m1s")
	RelayLatency      = metric.NewHistogram("1m1s")
	MessagesSent      = metric.NewCounter("10s1s")
	MessagesRelayed   = metric.NewCounter("10s1s")
	MessagesDelivered = metric.NewCounter("10s1s")
	MessagesDropped   = metric.NewCounter("10s1s")
	RouteUpdates      = metric.NewCounter("1m10s")
)

// Handler serves the metrics in a human friendly format
func Handler() http.Handler {
	return metric.Handler(metric.Exposed)
}

func init() {
	expvar.Publish("weft:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("weft:RelayLatency (µs)", RelayLatency)
	expvar.Publish("weft:MessagesSent", MessagesSent)
	expvar.Publish("weft:MessagesRelayed", MessagesRelayed)
	expvar.Publish("weft:MessagesDelivered", MessagesDelivered)
	expvar.Publish("weft:MessagesDropped", MessagesDropped)
	expvar.Publish("weft:RouteUpdates", RouteUpdates)
}
