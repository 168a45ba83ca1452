package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
	assert.NoError(t, NameValidator("CA1"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("abcd-a.com\\hi"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func TestBindValidator(t *testing.T) {
	assert.NoError(t, BindValidator("127.0.0.1:8888"))
	assert.NoError(t, BindValidator("localhost:1"))
	assert.Error(t, BindValidator("127.0.0.1"))
	assert.Error(t, BindValidator(":8888"))
	assert.Error(t, BindValidator("127.0.0.1:0"))
	assert.Error(t, BindValidator("127.0.0.1:70000"))
}

func TestControllerConfigValidator(t *testing.T) {
	cfg := &ControllerCfg{
		Bind: "127.0.0.1:8888",
		Links: []Edge{
			{U: "a", V: "b", Weight: 1},
			{U: "b", V: "c", Weight: 2},
		},
	}
	assert.NoError(t, ControllerConfigValidator(cfg))

	cfg.Links = append(cfg.Links, Edge{U: "b", V: "a", Weight: 3})
	assert.ErrorContains(t, ControllerConfigValidator(cfg), "duplicate link")

	cfg.Links = []Edge{{U: "a", V: "b", Weight: 0}}
	assert.ErrorIs(t, ControllerConfigValidator(cfg), ErrInvalidWeight)

	cfg.Links = []Edge{{U: "a", V: "a", Weight: 4}}
	assert.ErrorIs(t, ControllerConfigValidator(cfg), ErrSelfLoop)

	cfg.Links = nil
	cfg.Bind = "nope"
	assert.Error(t, ControllerConfigValidator(cfg))
}

func TestRouterConfigValidator(t *testing.T) {
	cfg := &RouterCfg{Id: "wa", Ip: "127.0.0.1", Port: 8080, Controller: "127.0.0.1:8888"}
	assert.NoError(t, RouterConfigValidator(cfg))

	bad := *cfg
	bad.Port = 0
	assert.Error(t, RouterConfigValidator(&bad))

	bad = *cfg
	bad.Controller = ""
	assert.Error(t, RouterConfigValidator(&bad))

	bad = *cfg
	bad.Id = "bad name"
	assert.Error(t, RouterConfigValidator(&bad))
}

func TestNodeValidator(t *testing.T) {
	key, err := GenerateKeypair()
	require.NoError(t, err)
	pub, err := SerializePublic(key.Public())
	require.NoError(t, err)

	assert.NoError(t, NodeValidator(Node{Name: "a", Ip: "127.0.0.1", Port: 1}))
	assert.NoError(t, NodeValidator(Node{Name: "a", Ip: "127.0.0.1", Port: 1, PublicKey: pub}))
	assert.Error(t, NodeValidator(Node{Name: "a", Ip: "127.0.0.1", Port: 1, PublicKey: "junk"}))
	assert.Error(t, NodeValidator(Node{Name: "a", Port: 1}))
	assert.Error(t, NodeValidator(Node{Name: "a", Ip: "127.0.0.1"}))
}
