package state

import (
	"os"

	"github.com/goccy/go-yaml"
)

// ControllerCfg represents the control plane configuration
type ControllerCfg struct {
	Bind      string `yaml:"bind"`                 // address routers dial to register
	AdminBind string `yaml:"admin_bind,omitempty"` // if not empty, serves the admin http api
	RoutesDir string `yaml:"routes_dir,omitempty"` // if not empty, route table snapshots are written here
	LogPath   string `yaml:"log_path,omitempty"`   // if not empty, logs are also written to this file
	Links     []Edge `yaml:"links"`                // weighted links, applied once both endpoints have registered
}

// RouterCfg represents the configuration of a single data plane router
type RouterCfg struct {
	Id         NodeId      `yaml:"id"`
	Ip         string      `yaml:"ip"`
	Port       uint16      `yaml:"port"`
	Controller string      `yaml:"controller"`           // controller address
	Key        *PrivateKey `yaml:"key,omitempty"`        // generated on start if empty
	AdminBind  string      `yaml:"admin_bind,omitempty"` // if not empty, serves the admin http api
	RoutesDir  string      `yaml:"routes_dir,omitempty"` // if not empty, the received route table is written here
	InboxDir   string      `yaml:"inbox_dir,omitempty"`  // if not empty, received files are written here
	LogPath    string      `yaml:"log_path,omitempty"`   // if not empty, logs are also written to this file
}

func (c *RouterCfg) Node() Node {
	return Node{Name: c.Id, Ip: c.Ip, Port: c.Port}
}

func readYaml[T any](path string) (*T, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg T
	if err = yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ReadControllerConfig(path string) (*ControllerCfg, error) {
	cfg, err := readYaml[ControllerCfg](path)
	if err != nil {
		return nil, err
	}
	if err = ControllerConfigValidator(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadRouterConfig(path string) (*RouterCfg, error) {
	cfg, err := readYaml[RouterCfg](path)
	if err != nil {
		return nil, err
	}
	if err = RouterConfigValidator(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func WriteConfig(path string, cfg any) error {
	bytes, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0600)
}
