package state

import (
	"net"
	"slices"
	"strconv"
	"time"
)

type NodeId string

// Node is a named endpoint. Identity is the name, the address and key are attributes.
type Node struct {
	Name      NodeId `json:"name" yaml:"name"`
	Ip        string `json:"ip" yaml:"ip"`
	Port      uint16 `json:"port" yaml:"port"`
	PublicKey string `json:"public_key" yaml:"public_key,omitempty"`
}

func (n Node) Equal(o Node) bool {
	return n.Name == o.Name
}

func (n Node) AddrPort() string {
	return net.JoinHostPort(n.Ip, strconv.Itoa(int(n.Port)))
}

func (n Node) String() string {
	return string(n.Name)
}

// Edge is an undirected weighted link between two nodes
type Edge struct {
	U      NodeId `json:"u" yaml:"u"`
	V      NodeId `json:"v" yaml:"v"`
	Weight int    `json:"weight" yaml:"weight"`
}

// Route is a source routed path. An empty Path means the destination is unreachable.
type Route struct {
	Source      Node   `json:"source"`
	Destination Node   `json:"destination"`
	Path        []Node `json:"path"`
}

func (r Route) Reachable() bool {
	return len(r.Path) > 0
}

// Hops returns the names along the path
func (r Route) Hops() []NodeId {
	hops := make([]NodeId, 0, len(r.Path))
	for _, n := range r.Path {
		hops = append(hops, n.Name)
	}
	return hops
}

// RouteTable is the full set of routes owned by a single node. It is always replaced as a whole.
type RouteTable struct {
	Node   Node    `json:"node"`
	Routes []Route `json:"routes"`
}

func (t RouteTable) Lookup(dst NodeId) (Route, bool) {
	idx := slices.IndexFunc(t.Routes, func(route Route) bool {
		return route.Destination.Name == dst
	})
	if idx == -1 {
		return Route{}, false
	}
	return t.Routes[idx], true
}

// Clone returns a deep copy of the table
func (t RouteTable) Clone() RouteTable {
	routes := make([]Route, 0, len(t.Routes))
	for _, r := range t.Routes {
		r.Path = slices.Clone(r.Path)
		if r.Path == nil {
			r.Path = []Node{}
		}
		routes = append(routes, r)
	}
	return RouteTable{Node: t.Node, Routes: routes}
}

// Message is the router to router frame. Path holds the hops that have not processed the message yet,
// the head is the node expected to receive it.
type Message struct {
	Message string `json:"message"`
	Path    []Node `json:"path"`
	Key     string `json:"key"`
	IsFile  bool   `json:"is_file"`
}

// Delivery is a decrypted message handed to the application on the destination router
type Delivery struct {
	Payload    []byte
	IsFile     bool
	ReceivedAt time.Time
}
