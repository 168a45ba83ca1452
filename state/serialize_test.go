package state

import (
	"encoding/json"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeConfig(t *testing.T) {
	key, err := GenerateKeypair()
	require.NoError(t, err)

	rcfg := RouterCfg{
		Id:         "router-1",
		Ip:         "127.0.0.1",
		Port:       8080,
		Controller: "127.0.0.1:8888",
		Key:        key,
		RoutesDir:  "routes",
	}
	x1, err := yaml.Marshal(rcfg)
	require.NoError(t, err)
	y1 := RouterCfg{}
	require.NoError(t, yaml.Unmarshal(x1, &y1))
	assert.Equal(t, rcfg.Id, y1.Id)
	assert.Equal(t, rcfg.Port, y1.Port)
	require.NotNil(t, y1.Key)
	assert.True(t, y1.Key.Public().Equal(key.Public()))

	ccfg := ControllerCfg{
		Bind:      "127.0.0.1:8888",
		RoutesDir: "routes",
		Links: []Edge{
			{U: "wa", V: "ca", Weight: 2100},
			{U: "ca", V: "ut", Weight: 1500},
		},
	}
	x2, err := yaml.Marshal(ccfg)
	require.NoError(t, err)
	y2 := ControllerCfg{}
	require.NoError(t, yaml.Unmarshal(x2, &y2))
	assert.EqualValues(t, ccfg, y2)
}

func TestDeserializeInvalid(t *testing.T) {
	x1 := `id: router-1
ip: 127.0.0.1
port: abcd
`
	y1 := RouterCfg{}
	err := yaml.Unmarshal([]byte(x1), &y1)
	assert.Error(t, err)
}

func TestRouteTableRoundTrip(t *testing.T) {
	a := Node{Name: "A", Ip: "127.0.0.1", Port: 8001, PublicKey: "ka"}
	b := Node{Name: "B", Ip: "127.0.0.1", Port: 8002}
	c := Node{Name: "C", Ip: "127.0.0.1", Port: 8003}
	d := Node{Name: "D", Ip: "127.0.0.1", Port: 8004}
	tbl := RouteTable{
		Node: a,
		Routes: []Route{
			{Source: a, Destination: b, Path: []Node{a, b}},
			{Source: a, Destination: c, Path: []Node{a, b, c}},
			{Source: a, Destination: d, Path: []Node{}},
		},
	}
	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"path":[]`)

	var out RouteTable
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, tbl, out)
	assert.False(t, out.Routes[2].Reachable())
	assert.True(t, out.Routes[0].Reachable())
}

func TestMessageWireFormat(t *testing.T) {
	msg := Message{
		Message: "Y2lwaGVy",
		Path:    []Node{{Name: "B", Ip: "127.0.0.1", Port: 8002}},
		Key:     "a2V5",
		IsFile:  true,
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "message")
	assert.Contains(t, fields, "path")
	assert.Contains(t, fields, "key")
	assert.Equal(t, true, fields["is_file"])

	hop := fields["path"].([]any)[0].(map[string]any)
	assert.Equal(t, "B", hop["name"])
	assert.Contains(t, hop, "public_key")
}
