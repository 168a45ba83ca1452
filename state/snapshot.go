package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

func SnapshotPath(dir string, node NodeId) string {
	return filepath.Join(dir, fmt.Sprintf("routes_%s.json", node))
}

// WriteRouteSnapshot writes the table to routes_<node>.json under dir. Nothing reads it back, it exists for inspection.
func WriteRouteSnapshot(dir string, table RouteTable) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(table, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(SnapshotPath(dir, table.Node.Name), data, 0600)
}

func RemoveRouteSnapshot(dir string, node NodeId) error {
	err := os.Remove(SnapshotPath(dir, node))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
