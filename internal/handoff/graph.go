// Package handoff owns the conversation state machine: the immutable graph of
// handlers, the router that applies transfer requests, the per-conversation
// session state and the stores that keep it between turns.
package handoff

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"phoneai_backend/platform/apperr"

	"gopkg.in/yaml.v3"
)

// HandlerName identifies a conversational handler.
type HandlerName string

// Handlers of the canonical graph.
const (
	Welcome             HandlerName = "welcome"
	InformationDesk     HandlerName = "information_desk"
	Identification      HandlerName = "customer_identification"
	ProductConsultation HandlerName = "product_consultation"
)

//go:embed graph.yaml
var defaultGraphYAML []byte

// Node is one handler of the graph. Instruction and Opening are opaque
// persona resources for the conversation runtime.
type Node struct {
	Name         HandlerName   `json:"name"`
	DisplayName  string        `json:"displayName"`
	Description  string        `json:"description,omitempty"`
	Opening      string        `json:"opening,omitempty"`
	Instruction  string        `json:"-"`
	Destinations []HandlerName `json:"destinations"`
}

// Edge is one allowed transition.
type Edge struct {
	Source      HandlerName `json:"source"`
	Destination HandlerName `json:"destination"`
}

// Graph is the set of handlers and allowed transitions. It is built once and
// never mutated; accessors return copies.
type Graph struct {
	initial HandlerName
	order   []HandlerName
	nodes   map[HandlerName]Node
	allowed map[HandlerName]map[HandlerName]struct{}
}

type graphFile struct {
	Initial string     `yaml:"initial"`
	Nodes   []nodeFile `yaml:"nodes"`
}

type nodeFile struct {
	Name         string   `yaml:"name"`
	DisplayName  string   `yaml:"display_name"`
	Description  string   `yaml:"description"`
	Opening      string   `yaml:"opening"`
	Instruction  string   `yaml:"instruction"`
	Destinations []string `yaml:"destinations"`
}

// DefaultGraph returns the embedded canonical graph.
func DefaultGraph() (*Graph, error) {
	return ParseGraph(defaultGraphYAML)
}

// LoadGraphFile parses a graph from a YAML file.
func LoadGraphFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "read handoff graph "+path, err)
	}
	return ParseGraph(data)
}

// ParseGraph decodes and validates a YAML graph definition. Unknown fields,
// unknown destinations, self loops, duplicate nodes or edges and a missing
// initial handler are configuration errors.
func ParseGraph(data []byte) (*Graph, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file graphFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Config("handoff graph is empty")
		}
		return nil, apperr.Wrap(apperr.KindConfig, "decode handoff graph", err)
	}
	return buildGraph(file)
}

func buildGraph(file graphFile) (*Graph, error) {
	if len(file.Nodes) == 0 {
		return nil, apperr.Config("handoff graph has no handlers")
	}

	g := &Graph{
		initial: HandlerName(strings.TrimSpace(file.Initial)),
		nodes:   make(map[HandlerName]Node, len(file.Nodes)),
		allowed: make(map[HandlerName]map[HandlerName]struct{}, len(file.Nodes)),
	}

	for _, nf := range file.Nodes {
		name := HandlerName(strings.TrimSpace(nf.Name))
		if name == "" {
			return nil, apperr.Config("handoff graph has a handler without a name")
		}
		if _, dup := g.nodes[name]; dup {
			return nil, apperr.Config(fmt.Sprintf("handler %s is declared twice", name))
		}
		displayName := strings.TrimSpace(nf.DisplayName)
		if displayName == "" {
			displayName = string(name)
		}
		g.nodes[name] = Node{
			Name:        name,
			DisplayName: displayName,
			Description: strings.TrimSpace(nf.Description),
			Opening:     strings.TrimSpace(nf.Opening),
			Instruction: strings.TrimSpace(nf.Instruction),
		}
		g.order = append(g.order, name)
	}

	if _, ok := g.nodes[g.initial]; !ok {
		return nil, apperr.Config(fmt.Sprintf("initial handler %q is not declared", g.initial))
	}

	for _, nf := range file.Nodes {
		src := HandlerName(strings.TrimSpace(nf.Name))
		dests := make(map[HandlerName]struct{}, len(nf.Destinations))
		list := make([]HandlerName, 0, len(nf.Destinations))
		for _, raw := range nf.Destinations {
			dst := HandlerName(strings.TrimSpace(raw))
			if _, ok := g.nodes[dst]; !ok {
				return nil, apperr.Config(fmt.Sprintf("handler %s transfers to unknown handler %q", src, dst))
			}
			if dst == src {
				return nil, apperr.Config(fmt.Sprintf("handler %s transfers to itself", src))
			}
			if _, dup := dests[dst]; dup {
				return nil, apperr.Config(fmt.Sprintf("handler %s lists %s twice", src, dst))
			}
			dests[dst] = struct{}{}
			list = append(list, dst)
		}
		g.allowed[src] = dests
		node := g.nodes[src]
		node.Destinations = list
		g.nodes[src] = node
	}

	return g, nil
}

// Initial returns the handler every new conversation starts with.
func (g *Graph) Initial() HandlerName {
	return g.initial
}

// Has reports whether name is a handler of the graph.
func (g *Graph) Has(name HandlerName) bool {
	_, ok := g.nodes[name]
	return ok
}

// Node returns a copy of the named handler.
func (g *Graph) Node(name HandlerName) (Node, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return Node{}, false
	}
	n.Destinations = append([]HandlerName(nil), n.Destinations...)
	return n, true
}

// Nodes returns copies of all handlers in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		n, _ := g.Node(name)
		out = append(out, n)
	}
	return out
}

// Allowed reports whether source may transfer to destination.
func (g *Graph) Allowed(source, destination HandlerName) bool {
	_, ok := g.allowed[source][destination]
	return ok
}

// Destinations returns the handlers source may transfer to.
func (g *Graph) Destinations(source HandlerName) []HandlerName {
	n, ok := g.nodes[source]
	if !ok {
		return nil
	}
	return append([]HandlerName(nil), n.Destinations...)
}

// Edges returns every allowed transition in declaration order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, src := range g.order {
		for _, dst := range g.nodes[src].Destinations {
			edges = append(edges, Edge{Source: src, Destination: dst})
		}
	}
	return edges
}

// DOT renders the graph in Graphviz format.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph handoff {\n")
	b.WriteString("  rankdir=LR;\n")
	names := append([]HandlerName(nil), g.order...)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, name := range names {
		shape := "box"
		if name == g.initial {
			shape = "doublecircle"
		}
		fmt.Fprintf(&b, "  %q [label=%q shape=%s];\n", name, g.nodes[name].DisplayName, shape)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.Source, e.Destination)
	}
	b.WriteString("}\n")
	return b.String()
}
