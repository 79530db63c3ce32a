package hierarchy

import (
	"fmt"
	"strings"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	KindCollection Kind = iota + 1
	KindBlock
	KindEncryptedBlock
)

const (
	TagBlock          = "BLOCK"
	TagEncryptedBlock = "ENCRYPTED_BLOCK"
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindBlock:
		return TagBlock
	case KindEncryptedBlock:
		return TagEncryptedBlock
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is either a collection holding a list of sub-trees or a block tag.
type Node struct {
	Kind     Kind
	Children []Tree
}

// Entry is a single named node inside a Tree.
type Entry struct {
	Name string
	Node Node
}

// Tree is an ordered mapping from names to nodes describing the desired
// layout below a collection.
type Tree []Entry

func Collection(children ...Tree) Node {
	return Node{Kind: KindCollection, Children: children}
}

func Block() Node {
	return Node{Kind: KindBlock}
}

func EncryptedBlock() Node {
	return Node{Kind: KindEncryptedBlock}
}

// IsBlock reports whether the node describes a block of either kind.
func (n Node) IsBlock() bool {
	return n.Kind == KindBlock || n.Kind == KindEncryptedBlock
}

// Validate checks the whole tree for shapes that cannot be materialized.
// Sibling sub-trees of a collection, and repeated collections, describe one
// merged namespace, so a path may only ever be declared with a single kind.
func Validate(tree Tree) error {
	return validate(tree, data.RootPath, make(map[string]Kind))
}

func validate(tree Tree, at string, seen map[string]Kind) error {
	for _, entry := range tree {
		if err := validateName(entry.Name); err != nil {
			return errors.InvalidHierarchySpec(at, err.Error())
		}

		path := data.Join(at, entry.Name)
		if kind, exists := seen[path]; exists && kind != entry.Node.Kind {
			return errors.InvalidHierarchySpec(path, fmt.Sprintf("declared as both %s and %s", kind, entry.Node.Kind))
		}
		seen[path] = entry.Node.Kind

		switch entry.Node.Kind {
		case KindBlock, KindEncryptedBlock:
			if len(entry.Node.Children) > 0 {
				return errors.InvalidHierarchySpec(path, "a block cannot hold children")
			}
		case KindCollection:
			for _, child := range entry.Node.Children {
				if err := validate(child, path, seen); err != nil {
					return err
				}
			}
		default:
			return errors.InvalidHierarchySpec(path, fmt.Sprintf("unknown node %s", entry.Node.Kind))
		}
	}

	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name")
	case name == "." || name == "..":
		return fmt.Errorf("relative name '%s'", name)
	case strings.Contains(name, "/"):
		return fmt.Errorf("name '%s' contains a path separator", name)
	}

	return nil
}
