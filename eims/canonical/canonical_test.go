package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SortsKeysAtEveryDepth(t *testing.T) {
	in := []byte(`{
		"b": 1,
		"a": {"z": [ {"y": true, "x": null} ], "c": "d"},
		"A": 1.50
	}`)

	out, err := Canonicalize(in)
	require.NoError(t, err)
	assert.Equal(t, `{"A":1.50,"a":{"c":"d","z":[{"x":null,"y":true}]},"b":1}`, string(out))
}

func TestMarshal_StructIsStable(t *testing.T) {
	type line struct {
		Quantity    json.Number `json:"Quantity"`
		Description string      `json:"ProductDescription"`
	}
	type doc struct {
		Version string `json:"Version"`
		Items   []line `json:"ItemList"`
		Buyer   string `json:"BuyerName"`
	}
	v := doc{Version: "1", Items: []line{{Quantity: "2", Description: "ጤፍ <1kg> & more"}}, Buyer: "Abebe"}

	first, err := Marshal(v)
	require.NoError(t, err)
	second, err := Marshal(v)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, `{"BuyerName":"Abebe","ItemList":[{"ProductDescription":"ጤፍ <1kg> & more","Quantity":2}],"Version":"1"}`, string(first))
}

func TestMarshal_RawMessage(t *testing.T) {
	out, err := Marshal(json.RawMessage(`{"b":[],"a":{}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{},"b":[]}`, string(out))
}

func TestCanonicalize_Rejects(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":1,"a":2}`))
	assert.Error(t, err)

	_, err = Canonicalize([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = Canonicalize([]byte(`{"a":`))
	assert.Error(t, err)
}
