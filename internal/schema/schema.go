// Package schema defines the vertex/edge graph data model and the schema
// inferrer (C4) that derives it from a relational catalog.
package schema

import "fmt"

// FieldDescriptor describes one column/attribute of a vertex or edge type.
type FieldDescriptor struct {
	Name     string
	DataType string
	Nullable bool
}

// VertexType is a node label with its attribute set and index declarations.
type VertexType struct {
	Name             string
	Fields           []FieldDescriptor
	PrimaryIndex     []string
	SecondaryIndices [][]string
}

func (v *VertexType) hasField(name string) bool {
	for _, f := range v.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (v *VertexType) validate() error {
	for _, idx := range append([][]string{v.PrimaryIndex}, v.SecondaryIndices...) {
		for _, field := range idx {
			if !v.hasField(field) {
				return fmt.Errorf("schema: vertex %q index references undeclared field %q", v.Name, field)
			}
		}
	}
	return nil
}

// EdgeType is a directed (or self-referencing) relation between two vertex
// types, carrying the column names used to match endpoints.
type EdgeType struct {
	Source      string
	Target      string
	Relation    string
	MatchSource string
	MatchTarget string
}

// Graph is the immutable, validated collection of vertex and edge types.
// Once Build() returns a *Graph, it exposes no mutator methods.
type Graph struct {
	vertices map[string]*VertexType
	edges    []*EdgeType
}

// Builder accumulates vertex/edge types before Build() freezes them.
type Builder struct {
	vertices map[string]*VertexType
	edges    []*EdgeType
}

func NewBuilder() *Builder {
	return &Builder{vertices: make(map[string]*VertexType)}
}

func (b *Builder) AddVertex(v *VertexType) *Builder {
	b.vertices[v.Name] = v
	return b
}

func (b *Builder) AddEdge(e *EdgeType) *Builder {
	b.edges = append(b.edges, e)
	return b
}

// Build validates every vertex's index declarations and every edge's
// endpoint references, then freezes the graph.
func (b *Builder) Build() (*Graph, error) {
	for name, v := range b.vertices {
		if err := v.validate(); err != nil {
			return nil, err
		}
		if v.Name != name {
			return nil, fmt.Errorf("schema: vertex map key %q does not match vertex name %q", name, v.Name)
		}
	}
	for _, e := range b.edges {
		if _, ok := b.vertices[e.Source]; !ok {
			return nil, fmt.Errorf("schema: edge %q references undeclared source vertex %q", e.Relation, e.Source)
		}
		if _, ok := b.vertices[e.Target]; !ok {
			return nil, fmt.Errorf("schema: edge %q references undeclared target vertex %q", e.Relation, e.Target)
		}
	}
	return &Graph{vertices: b.vertices, edges: b.edges}, nil
}

// Vertex looks up a declared vertex type by name.
func (g *Graph) Vertex(name string) (*VertexType, bool) {
	v, ok := g.vertices[name]
	return v, ok
}

// VertexNames returns every declared vertex type name.
func (g *Graph) VertexNames() []string {
	names := make([]string, 0, len(g.vertices))
	for name := range g.vertices {
		names = append(names, name)
	}
	return names
}

// Edges returns every declared edge type.
func (g *Graph) Edges() []*EdgeType {
	return g.edges
}
