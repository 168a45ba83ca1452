package core

import (
	"container/heap"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/encodeous/weft/state"
)

// Topology is a weighted undirected graph of nodes. It is not safe for concurrent use, the controller
// only touches it from its dispatch loop.
type Topology struct {
	nodes map[state.NodeId]state.Node
	adj   map[state.NodeId]map[state.NodeId]int
	log   *slog.Logger
}

func NewTopology(log *slog.Logger) *Topology {
	if log == nil {
		log = slog.Default()
	}
	return &Topology{
		nodes: make(map[state.NodeId]state.Node),
		adj:   make(map[state.NodeId]map[state.NodeId]int),
		log:   log,
	}
}

// AddNode inserts the node or replaces its attributes, edges are kept
func (t *Topology) AddNode(node state.Node) {
	t.nodes[node.Name] = node
	if _, ok := t.adj[node.Name]; !ok {
		t.adj[node.Name] = make(map[state.NodeId]int)
	}
}

func (t *Topology) HasNode(name state.NodeId) bool {
	_, ok := t.nodes[name]
	return ok
}

func (t *Topology) Node(name state.NodeId) (state.Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// RemoveNode deletes the node and every incident edge
func (t *Topology) RemoveNode(name state.NodeId) bool {
	if !t.HasNode(name) {
		t.log.Debug("node not found in the graph", "node", name)
		return false
	}
	for neigh := range t.adj[name] {
		delete(t.adj[neigh], name)
	}
	delete(t.adj, name)
	delete(t.nodes, name)
	return true
}

// AddEdge inserts or overwrites the u-v edge. Unknown endpoints are created without attributes.
func (t *Topology) AddEdge(u, v state.NodeId, weight int) error {
	if u == v {
		return fmt.Errorf("%w: %s", state.ErrSelfLoop, u)
	}
	if weight <= 0 {
		return fmt.Errorf("%w: %s-%s has weight %d", state.ErrInvalidWeight, u, v, weight)
	}
	for _, n := range []state.NodeId{u, v} {
		if !t.HasNode(n) {
			t.AddNode(state.Node{Name: n})
		}
	}
	t.adj[u][v] = weight
	t.adj[v][u] = weight
	return nil
}

func (t *Topology) RemoveEdge(u, v state.NodeId) bool {
	if _, ok := t.adj[u][v]; !ok {
		return false
	}
	delete(t.adj[u], v)
	delete(t.adj[v], u)
	return true
}

func (t *Topology) Weight(u, v state.NodeId) (int, bool) {
	w, ok := t.adj[u][v]
	return w, ok
}

// Nodes returns every node sorted by name
func (t *Topology) Nodes() []state.Node {
	out := make([]state.Node, 0, len(t.nodes))
	for _, name := range slices.Sorted(maps.Keys(t.nodes)) {
		out = append(out, t.nodes[name])
	}
	return out
}

// Edges returns every edge once, with U < V, sorted
func (t *Topology) Edges() []state.Edge {
	out := make([]state.Edge, 0)
	for _, u := range slices.Sorted(maps.Keys(t.adj)) {
		for _, v := range slices.Sorted(maps.Keys(t.adj[u])) {
			if u < v {
				out = append(out, state.Edge{U: u, V: v, Weight: t.adj[u][v]})
			}
		}
	}
	return out
}

type pqItem struct {
	node state.NodeId
	dist int
}

type distQueue []pqItem

func (q distQueue) Len() int { return len(q) }
func (q distQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q distQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x any)   { *q = append(*q, x.(pqItem)) }
func (q *distQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// ShortestPath runs Dijkstra from start to end. It returns an empty slice if either node is absent or end
// is unreachable. Among equal cost paths, the one found first when relaxing neighbours in name order wins.
func (t *Topology) ShortestPath(start, end state.NodeId) []state.NodeId {
	if !t.HasNode(start) || !t.HasNode(end) {
		return []state.NodeId{}
	}
	if start == end {
		return []state.NodeId{start}
	}

	dist := map[state.NodeId]int{start: 0}
	prev := make(map[state.NodeId]state.NodeId)
	done := make(map[state.NodeId]bool)
	q := &distQueue{{start, 0}}

	for q.Len() > 0 {
		cur := heap.Pop(q).(pqItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == end {
			break
		}
		for _, neigh := range slices.Sorted(maps.Keys(t.adj[cur.node])) {
			if done[neigh] {
				continue
			}
			nd := cur.dist + t.adj[cur.node][neigh]
			if d, ok := dist[neigh]; !ok || nd < d {
				dist[neigh] = nd
				prev[neigh] = cur.node
				heap.Push(q, pqItem{neigh, nd})
			}
		}
	}

	if !done[end] {
		return []state.NodeId{}
	}
	path := []state.NodeId{end}
	for cur := end; cur != start; {
		cur = prev[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}

// PathCost sums the weights along path, false if a hop is not an edge
func (t *Topology) PathCost(path []state.NodeId) (int, bool) {
	cost := 0
	for i := 1; i < len(path); i++ {
		w, ok := t.adj[path[i-1]][path[i]]
		if !ok {
			return 0, false
		}
		cost += w
	}
	return cost, true
}

func (t *Topology) resolve(path []state.NodeId) []state.Node {
	out := make([]state.Node, 0, len(path))
	for _, n := range path {
		out = append(out, t.nodes[n])
	}
	return out
}

// RouteTableFor computes a route from name to every other node, unreachable ones get an empty path
func (t *Topology) RouteTableFor(name state.NodeId) (state.RouteTable, bool) {
	owner, ok := t.nodes[name]
	if !ok {
		return state.RouteTable{}, false
	}
	tbl := state.RouteTable{Node: owner, Routes: make([]state.Route, 0, len(t.nodes))}
	for _, dst := range t.Nodes() {
		if dst.Name == name {
			continue
		}
		tbl.Routes = append(tbl.Routes, state.Route{
			Source:      owner,
			Destination: dst,
			Path:        t.resolve(t.ShortestPath(name, dst.Name)),
		})
	}
	return tbl, true
}

func (t *Topology) AllRouteTables() map[state.NodeId]state.RouteTable {
	out := make(map[state.NodeId]state.RouteTable, len(t.nodes))
	for name := range t.nodes {
		out[name], _ = t.RouteTableFor(name)
	}
	return out
}
