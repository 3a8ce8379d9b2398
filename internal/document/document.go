// Package document parses structured configuration documents (YAML) into
// an ordered tree and correlates tree paths back to source lines.
package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrParse is returned for malformed documents. Document rules treat it as
// "skip this artifact".
var ErrParse = errors.New("structured document parse failure")

// Document is a parsed artifact.
type Document struct {
	Root Node
}

// Parse parses raw YAML text. An empty document parses to a null root.
func Parse(raw []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	doc := &Document{}
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		doc.Root = Node{n: root.Content[0]}
	}
	return doc, nil
}

// Node is a mapping, sequence or scalar. The zero Node is "absent".
type Node struct {
	n *yaml.Node
}

func (n Node) resolved() *yaml.Node {
	node := n.n
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// Exists reports whether the node is present in the document.
func (n Node) Exists() bool {
	return n.resolved() != nil
}

// IsMapping reports whether the node is a mapping.
func (n Node) IsMapping() bool {
	node := n.resolved()
	return node != nil && node.Kind == yaml.MappingNode
}

// IsSequence reports whether the node is a sequence.
func (n Node) IsSequence() bool {
	node := n.resolved()
	return node != nil && node.Kind == yaml.SequenceNode
}

// IsScalar reports whether the node is a scalar.
func (n Node) IsScalar() bool {
	node := n.resolved()
	return node != nil && node.Kind == yaml.ScalarNode
}

// IsNull reports whether the node is an explicit or implicit null.
func (n Node) IsNull() bool {
	node := n.resolved()
	return node != nil && node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

// IsString reports whether the node is a string scalar.
func (n Node) IsString() bool {
	node := n.resolved()
	return node != nil && node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str"
}

// Line is the 1-based line the parser reported for the node, 0 if absent.
func (n Node) Line() int {
	if node := n.resolved(); node != nil {
		return node.Line
	}
	return 0
}

// Get returns the value for key in a mapping. The first occurrence wins.
func (n Node) Get(key string) Node {
	node := n.resolved()
	if node == nil || node.Kind != yaml.MappingNode {
		return Node{}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return Node{n: node.Content[i+1]}
		}
	}
	return Node{}
}

// Path walks nested mappings.
func (n Node) Path(keys ...string) Node {
	cur := n
	for _, k := range keys {
		cur = cur.Get(k)
		if !cur.Exists() {
			return Node{}
		}
	}
	return cur
}

// Has reports whether a mapping contains key.
func (n Node) Has(key string) bool {
	return n.Get(key).Exists()
}

// Keys returns mapping keys in document order.
func (n Node) Keys() []string {
	node := n.resolved()
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// Items returns sequence items in order.
func (n Node) Items() []Node {
	node := n.resolved()
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	items := make([]Node, 0, len(node.Content))
	for _, c := range node.Content {
		items = append(items, Node{n: c})
	}
	return items
}

// String returns a scalar's value, "" for anything else.
func (n Node) String() string {
	node := n.resolved()
	if node == nil || node.Kind != yaml.ScalarNode || node.ShortTag() == "!!null" {
		return ""
	}
	return node.Value
}

// Bool coerces boolean-like scalars: YAML booleans and the strings
// "true"/"false" in any case.
func (n Node) Bool() (value bool, ok bool) {
	node := n.resolved()
	if node == nil || node.Kind != yaml.ScalarNode {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Truthy mirrors loose truthiness of configuration values: null, false,
// "", "0", 0 and empty collections are false.
func (n Node) Truthy() bool {
	node := n.resolved()
	if node == nil {
		return false
	}
	switch node.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		return len(node.Content) > 0
	}
	switch node.ShortTag() {
	case "!!null":
		return false
	case "!!bool":
		b, _ := n.Bool()
		return b
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(strings.ReplaceAll(node.Value, "_", ""), 64)
		return err != nil || f != 0
	}
	return node.Value != "" && node.Value != "0"
}

// Contains reports whether a mapping has key, or a sequence has a scalar
// item equal to key.
func (n Node) Contains(key string) bool {
	switch {
	case n.IsMapping():
		return n.Has(key)
	case n.IsSequence():
		for _, item := range n.Items() {
			if item.IsScalar() && item.String() == key {
				return true
			}
		}
	}
	return false
}
