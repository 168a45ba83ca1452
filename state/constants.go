package state

import "time"

var (
	ProbeDelay       = time.Second * 3 // controller liveness probe interval
	AuthTimeout      = time.Second * 5
	DialTimeout      = time.Second * 5
	WriteTimeout     = time.Second * 5
	RelayReadTimeout = time.Second * 10
	KeyCacheTTL      = time.Minute * 10
	KeyCacheSweep    = time.Minute
	SummaryInterval  = time.Minute

	// MaxFrameSize bounds a single frame on any link, messages larger than this are rejected
	MaxFrameSize = 1 << 20

	DeliveryBuffer = 64
	DispatchBuffer = 128

	DefaultRoutesDir      = "routes"
	DefaultControllerBind = "127.0.0.1:8888"
)
