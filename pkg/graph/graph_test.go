package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

func TestGraphBasics(t *testing.T) {
	g := FromRelationships([]*store.Relationship{
		{FromID: "Alice", ToID: "Bob", RelationType: "co-occurrence", Strength: 20},
		{FromID: "Alice", ToID: "Carol", RelationType: "rival", Strength: 50},
	})

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []string{"Carol", "Bob"}, g.Neighbors("Alice"))
	assert.Equal(t, []string{"Alice"}, g.Neighbors("Bob"))
	assert.Empty(t, g.Neighbors("Nobody"))
}

func TestEdgeIsUndirected(t *testing.T) {
	g := NewGraph()
	g.AddEdge("Bob", "Alice", "co-occurrence", 10)

	require.NotNil(t, g.Edge("Alice", "Bob"))
	assert.Same(t, g.Edge("Alice", "Bob"), g.Edge("Bob", "Alice"))
	assert.Equal(t, "Alice", g.Edge("Bob", "Alice").From)

	g.AddEdge("Alice", "Bob", "co-occurrence", 30)
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 30, g.Edge("Bob", "Alice").Strength)
}

func TestSelfLoopIgnored(t *testing.T) {
	g := NewGraph()
	g.AddEdge("Alice", "Alice", "self", 10)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestCentrality(t *testing.T) {
	g := NewGraph()
	g.AddEdge("A", "B", "x", 10)
	g.AddEdge("A", "C", "x", 20)

	c := g.DegreeCentrality()
	assert.InDelta(t, 1.0, c["A"], 1e-9)
	assert.InDelta(t, 0.5, c["B"], 1e-9)

	w := g.WeightedDegree()
	assert.Equal(t, 30, w["A"])
	assert.Equal(t, 20, w["C"])

	single := NewGraph()
	single.EnsureNode("Solo")
	assert.Equal(t, map[string]float64{"Solo": 0}, single.DegreeCentrality())
}

func TestJSONRoundTrip(t *testing.T) {
	g := NewGraph()
	g.AddEdge("Bob", "Alice", "co-occurrence", 20)
	g.AddEdge("Carol", "Alice", "rival", -40)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"from":"Alice","to":"Bob","type":"co-occurrence","strength":20},
		{"from":"Alice","to":"Carol","type":"rival","strength":-40}
	]`, string(data))

	var back RelationshipGraph
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Edges(), back.Edges())
}

func TestEmptyGraphMarshalsToEmptyArray(t *testing.T) {
	data, err := json.Marshal(NewGraph())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
