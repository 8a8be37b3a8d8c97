// internal/graph/node.go
package graph

// TypeTagKey is the discriminator field carried by every node in the
// denormalized object graph.
const TypeTagKey = "__typename"

// Value wraps one field value from the object graph: a scalar, a list, or a
// nested keyed map. Accessors are nil-safe so lookup chains over partially
// populated nodes read like plain field access and simply come back empty.
type Value struct {
	raw interface{}
}

// IsNil reports whether the value is absent or JSON null.
func (v Value) IsNil() bool {
	return v.raw == nil
}

// String returns the value as a string.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Float returns the value as a float64.
func (v Value) Float() (float64, bool) {
	f, ok := v.raw.(float64)
	return f, ok
}

// Int returns the value as an int. JSON numbers decode as float64; integral
// values convert losslessly.
func (v Value) Int() (int, bool) {
	f, ok := v.raw.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Int64 returns the value as an int64, for epoch-millisecond fields.
func (v Value) Int64() (int64, bool) {
	f, ok := v.raw.(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Node returns the value as a nested node.
func (v Value) Node() (Node, bool) {
	m, ok := v.raw.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return Node(m), true
}

// List returns the value as a list of values.
func (v Value) List() ([]Value, bool) {
	l, ok := v.raw.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]Value, len(l))
	for i, item := range l {
		out[i] = Value{raw: item}
	}
	return out, true
}

// Get descends one key into a nested map value. On scalars, lists, and
// missing keys it returns the nil Value, so chains never panic.
func (v Value) Get(key string) Value {
	n, ok := v.Node()
	if !ok {
		return Value{}
	}
	return n.Get(key)
}

// Node is one entry of the object graph: a type-tagged map of fields whose
// values may themselves nest.
type Node map[string]interface{}

// TypeTag returns the node's type discriminator, or "" when untagged.
func (n Node) TypeTag() string {
	if n == nil {
		return ""
	}
	tag, _ := n[TypeTagKey].(string)
	return tag
}

// Get returns the field value for key, or the nil Value.
func (n Node) Get(key string) Value {
	if n == nil {
		return Value{}
	}
	raw, ok := n[key]
	if !ok {
		return Value{}
	}
	return Value{raw: raw}
}

// Path walks a sequence of keys through nested maps.
func (n Node) Path(keys ...string) Value {
	v := Value{raw: map[string]interface{}(n)}
	for _, key := range keys {
		v = v.Get(key)
		if v.IsNil() {
			return Value{}
		}
	}
	return v
}

// LeafCount counts the scalar leaves reachable from the node: nested maps
// contribute their own leaf count, every other value counts as one leaf.
// Used as the completeness proxy when the graph carries several partial
// projections of the same entity.
func (n Node) LeafCount() int {
	count := 0
	for _, raw := range n {
		if nested, ok := raw.(map[string]interface{}); ok {
			count += Node(nested).LeafCount()
		} else {
			count++
		}
	}
	return count
}
