package hierarchy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
	"gopkg.in/yaml.v3"
)

// Parse reads a hierarchy from YAML or JSON. A list value declares a collection
// whose items are sub-trees, the strings BLOCK and ENCRYPTED_BLOCK declare blocks.
// Declaration order is preserved.
func Parse(b []byte) (Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.InvalidHierarchySpec(data.RootPath, err.Error())
	}

	if doc.Kind == 0 || len(doc.Content) == 0 || doc.Content[0].Tag == "!!null" {
		return Tree{}, nil
	}

	tree, err := parseTree(doc.Content[0], data.RootPath)
	if err != nil {
		return nil, err
	}

	if err := Validate(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func parseTree(n *yaml.Node, at string) (Tree, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, errors.InvalidHierarchySpec(at, fmt.Sprintf("expected a mapping at line %d", n.Line))
	}

	tree := make(Tree, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := resolve(n.Content[i]), resolve(n.Content[i+1])
		if key.Kind != yaml.ScalarNode {
			return nil, errors.InvalidHierarchySpec(at, fmt.Sprintf("expected a name at line %d", key.Line))
		}

		node, err := parseNode(val, data.Join(at, key.Value))
		if err != nil {
			return nil, err
		}

		tree = append(tree, Entry{Name: key.Value, Node: node})
	}

	return tree, nil
}

func parseNode(n *yaml.Node, at string) (Node, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		var children []Tree
		for _, item := range n.Content {
			child, err := parseTree(item, at)
			if err != nil {
				return Node{}, err
			}
			children = append(children, child)
		}
		return Collection(children...), nil

	case yaml.ScalarNode:
		switch {
		case n.Tag == "!!str" && n.Value == TagBlock:
			return Block(), nil
		case n.Tag == "!!str" && n.Value == TagEncryptedBlock:
			return EncryptedBlock(), nil
		}
	}

	return Node{}, errors.InvalidHierarchySpec(at, fmt.Sprintf("expected a list or a block tag at line %d", n.Line))
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindBlock:
		return json.Marshal(TagBlock)
	case KindEncryptedBlock:
		return json.Marshal(TagEncryptedBlock)
	case KindCollection:
		children := n.Children
		if children == nil {
			children = []Tree{}
		}
		return json.Marshal(children)
	}

	return nil, fmt.Errorf("hierarchy: cannot encode %s", n.Kind)
}

// MarshalJSON encodes the tree as a JSON object in declaration order.
func (t Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, entry := range t {
		if i > 0 {
			buf.WriteByte(',')
		}

		name, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		node, err := json.Marshal(entry.Node)
		if err != nil {
			return nil, err
		}

		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(node)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Tree) UnmarshalJSON(b []byte) error {
	tree, err := Parse(b)
	if err != nil {
		return err
	}

	*t = tree
	return nil
}
