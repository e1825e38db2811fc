// Package graph holds the character relationship graph derived from stored
// relationships. It backs context/relationships.graph.json and the
// relationships command's centrality listing.
package graph

import (
	"encoding/json"
	"sort"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

// Edge is an undirected relationship between two characters.
// From and To are in lexical order.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Type     string `json:"type"`
	Strength int    `json:"strength"`
}

// RelationshipGraph is an undirected weighted graph keyed by character name.
type RelationshipGraph struct {
	// Node storage: ID -> label
	Nodes map[string]string

	// Adjacency lists: ID -> neighbor ID -> Edge (both directions share the pointer)
	Adjacent map[string]map[string]*Edge
}

// NewGraph creates an empty graph
func NewGraph() *RelationshipGraph {
	return &RelationshipGraph{
		Nodes:    make(map[string]string),
		Adjacent: make(map[string]map[string]*Edge),
	}
}

// FromRelationships builds a graph from stored rows.
func FromRelationships(rels []*store.Relationship) *RelationshipGraph {
	g := NewGraph()
	for _, r := range rels {
		g.AddEdge(r.FromID, r.ToID, r.RelationType, r.Strength)
	}
	return g
}

// EnsureNode adds a node if it doesn't exist
func (g *RelationshipGraph) EnsureNode(id string) {
	if _, ok := g.Nodes[id]; !ok {
		g.Nodes[id] = id
	}
}

// AddEdge creates or replaces the edge between a and b. Self-loops are ignored.
func (g *RelationshipGraph) AddEdge(a, b, relType string, strength int) {
	if a == b {
		return
	}
	if b < a {
		a, b = b, a
	}
	g.EnsureNode(a)
	g.EnsureNode(b)

	edge := &Edge{From: a, To: b, Type: relType, Strength: strength}
	if g.Adjacent[a] == nil {
		g.Adjacent[a] = make(map[string]*Edge)
	}
	if g.Adjacent[b] == nil {
		g.Adjacent[b] = make(map[string]*Edge)
	}
	g.Adjacent[a][b] = edge
	g.Adjacent[b][a] = edge
}

// Edge returns the edge between a and b, or nil.
func (g *RelationshipGraph) Edge(a, b string) *Edge {
	return g.Adjacent[a][b]
}

// Neighbors returns the IDs connected to id, strongest first.
func (g *RelationshipGraph) Neighbors(id string) []string {
	adj := g.Adjacent[id]
	out := make([]string, 0, len(adj))
	for other := range adj {
		out = append(out, other)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := adj[out[i]].Strength, adj[out[j]].Strength
		if si != sj {
			return si > sj
		}
		return out[i] < out[j]
	})
	return out
}

// NodeCount returns the number of nodes
func (g *RelationshipGraph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of undirected edges
func (g *RelationshipGraph) EdgeCount() int {
	count := 0
	for _, adj := range g.Adjacent {
		count += len(adj)
	}
	return count / 2
}

// Edges returns every edge ordered by (From, To).
func (g *RelationshipGraph) Edges() []Edge {
	var out []Edge
	for id, adj := range g.Adjacent {
		for other, e := range adj {
			if id < other {
				out = append(out, *e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// DegreeCentrality computes degree/(n-1) for each node
func (g *RelationshipGraph) DegreeCentrality() map[string]float64 {
	n := len(g.Nodes)
	result := make(map[string]float64, n)
	if n <= 1 {
		for id := range g.Nodes {
			result[id] = 0.0
		}
		return result
	}

	normalizer := float64(n - 1)
	for id := range g.Nodes {
		result[id] = float64(len(g.Adjacent[id])) / normalizer
	}
	return result
}

// WeightedDegree sums edge strengths per node.
func (g *RelationshipGraph) WeightedDegree() map[string]int {
	result := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		total := 0
		for _, e := range g.Adjacent[id] {
			total += e.Strength
		}
		result[id] = total
	}
	return result
}

// MarshalJSON writes the graph as a sorted edge list.
func (g *RelationshipGraph) MarshalJSON() ([]byte, error) {
	edges := g.Edges()
	if edges == nil {
		edges = []Edge{}
	}
	return json.Marshal(edges)
}

// UnmarshalJSON reads an edge list.
func (g *RelationshipGraph) UnmarshalJSON(data []byte) error {
	var edges []Edge
	if err := json.Unmarshal(data, &edges); err != nil {
		return err
	}
	*g = *NewGraph()
	for _, e := range edges {
		g.AddEdge(e.From, e.To, e.Type, e.Strength)
	}
	return nil
}
