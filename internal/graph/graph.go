// internal/graph/graph.go
package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Strategy selects which node wins when the graph holds several entries of
// the requested type.
type Strategy int

const (
	// First returns the first matching node in graph-insertion order. Used
	// for singleton entities (series) where duplication is not expected.
	First Strategy = iota
	// Largest returns the matching node with the greatest recursive leaf
	// count. The graph stores multiple partial projections of the same
	// logical entity; the most complete one is assumed authoritative.
	Largest
)

// Graph is the denormalized object cache embedded in a modern-layout page.
// Key order is preserved because First resolution depends on it.
type Graph struct {
	keys  []string
	nodes map[string]Node
}

// Decode parses a JSON object of keyed nodes, preserving key order. Entries
// whose value is not an object are skipped; the cache occasionally carries
// scalar bookkeeping entries alongside entity nodes.
func Decode(data []byte) (*Graph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding object graph: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decoding object graph: document is not an object")
	}

	g := &Graph{nodes: make(map[string]Node)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding object graph key: %w", err)
		}
		key := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding object graph entry %q: %w", key, err)
		}

		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		g.keys = append(g.keys, key)
		g.nodes[key] = Node(fields)
	}

	return g, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.keys)
}

// Node returns the node stored under key.
func (g *Graph) Node(key string) (Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// Resolve selects the authoritative node for a type tag. The second return
// is false when no node of that type exists; callers must treat that as
// "page not fully loaded", not as a missing field.
func (g *Graph) Resolve(typeTag string, strategy Strategy) (Node, bool) {
	var best Node
	bestCount := -1
	for _, key := range g.keys {
		node := g.nodes[key]
		if node.TypeTag() != typeTag {
			continue
		}
		if strategy == First {
			return node, true
		}
		count := node.LeafCount()
		if count > bestCount {
			best = node
			bestCount = count
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// nextData mirrors the envelope around the embedded cache in the modern
// layout's __NEXT_DATA__ script.
type nextData struct {
	Props struct {
		PageProps struct {
			ApolloState json.RawMessage `json:"apolloState"`
		} `json:"pageProps"`
	} `json:"props"`
}

// DecodeEmbedded unwraps a __NEXT_DATA__ script body down to the object
// graph it carries.
func DecodeEmbedded(scriptText []byte) (*Graph, error) {
	var envelope nextData
	if err := json.Unmarshal(scriptText, &envelope); err != nil {
		return nil, fmt.Errorf("decoding embedded page data: %w", err)
	}
	state := envelope.Props.PageProps.ApolloState
	if len(state) == 0 {
		return nil, fmt.Errorf("embedded page data has no object graph")
	}
	return Decode(state)
}
