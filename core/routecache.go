package core

import (
	"sync"

	"github.com/encodeous/weft/state"
)

// RouteCache holds the last route table received from the controller
type RouteCache struct {
	mutex   sync.RWMutex
	table   state.RouteTable
	version uint64
}

// Replace swaps in a new table and returns the new version
func (c *RouteCache) Replace(table state.RouteTable) uint64 {
	table = table.Clone()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.table = table
	c.version++
	return c.version
}

func (c *RouteCache) Lookup(dst state.NodeId) (state.Route, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	route, ok := c.table.Lookup(dst)
	if !ok {
		return route, false
	}
	route.Path = append([]state.Node(nil), route.Path...)
	return route, true
}

// Snapshot returns a copy of the current table, version 0 means nothing was received yet
func (c *RouteCache) Snapshot() (state.RouteTable, uint64) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.table.Clone(), c.version
}
