package state

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

var namePattern = regexp.MustCompile("^[0-9A-Za-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%q is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("%s has no host", s)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return fmt.Errorf("%s has an invalid port: %w", s, err)
	}
	if p == 0 {
		return fmt.Errorf("%s has port 0", s)
	}
	return nil
}

func EdgeValidator(e Edge) error {
	if err := NameValidator(string(e.U)); err != nil {
		return err
	}
	if err := NameValidator(string(e.V)); err != nil {
		return err
	}
	if e.U == e.V {
		return fmt.Errorf("%w: %s", ErrSelfLoop, e.U)
	}
	if e.Weight <= 0 {
		return fmt.Errorf("%w: %s-%s has weight %d", ErrInvalidWeight, e.U, e.V, e.Weight)
	}
	return nil
}

// NodeValidator checks the descriptor a router announces when it registers
func NodeValidator(n Node) error {
	if err := NameValidator(string(n.Name)); err != nil {
		return err
	}
	if n.Ip == "" {
		return fmt.Errorf("node %s has no ip", n.Name)
	}
	if n.Port == 0 {
		return fmt.Errorf("node %s has no port", n.Name)
	}
	if n.PublicKey != "" {
		if _, err := DeserializePublic(n.PublicKey); err != nil {
			return fmt.Errorf("node %s has an invalid public key: %w", n.Name, err)
		}
	}
	return nil
}

func ControllerConfigValidator(cfg *ControllerCfg) error {
	if err := BindValidator(cfg.Bind); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if cfg.AdminBind != "" {
		if err := BindValidator(cfg.AdminBind); err != nil {
			return fmt.Errorf("admin_bind: %w", err)
		}
	}
	seen := make(map[Pair[NodeId, NodeId]]struct{})
	for _, link := range cfg.Links {
		if err := EdgeValidator(link); err != nil {
			return err
		}
		key := MakeSortedPair(link.U, link.V)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate link found: %s, %s", link.U, link.V)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func RouterConfigValidator(cfg *RouterCfg) error {
	if err := NameValidator(string(cfg.Id)); err != nil {
		return err
	}
	if cfg.Ip == "" {
		return fmt.Errorf("router %s has no ip", cfg.Id)
	}
	if cfg.Port == 0 {
		return fmt.Errorf("router %s has no port", cfg.Id)
	}
	if err := BindValidator(cfg.Controller); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if cfg.AdminBind != "" {
		if err := BindValidator(cfg.AdminBind); err != nil {
			return fmt.Errorf("admin_bind: %w", err)
		}
	}
	return nil
}
