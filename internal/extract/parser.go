package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Node is one AST node lifted out of tree-sitter, with a parent link
// so docstring pairing can look at preceding siblings.
type Node struct {
	Type      string
	StartByte uint32
	EndByte   uint32
	StartRow  uint32
	EndRow    uint32
	Parent    *Node
	Children  []*Node
}

// Content returns the source text the node spans.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// ChildOfType returns the first direct child with the given type.
func (n *Node) ChildOfType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// PrevSibling returns the sibling immediately before this node, or
// nil at the front of the parent's child list.
func (n *Node) PrevSibling() *Node {
	if n.Parent == nil {
		return nil
	}
	var prev *Node
	for _, c := range n.Parent.Children {
		if c == n {
			return prev
		}
		prev = c
	}
	return nil
}

// Walk visits the subtree depth-first. Returning false stops descent
// into the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Parser wraps a tree-sitter parser. Not safe for concurrent use; a
// parser holds per-parse state.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// Parse parses source and returns the lifted root node. The grammar
// is chosen by language, with the file path breaking the TSX/JSX
// dialect tie.
func (p *Parser) Parse(ctx context.Context, source []byte, language, path string) (*Node, error) {
	grammar := grammarFor(language, path)
	if grammar == nil {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	p.parser.SetLanguage(grammar)

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse %s: nil tree", path)
	}
	return liftNode(tree.RootNode(), nil), nil
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// grammarFor maps a language name to its tree-sitter grammar. The
// TypeScript grammar rejects JSX syntax, so .tsx files get the tsx
// dialect.
func grammarFor(language, path string) *sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		if strings.EqualFold(filepath.Ext(path), ".tsx") {
			return tsx.GetLanguage()
		}
		return typescript.GetLanguage()
	default:
		return nil
	}
}

func liftNode(tsNode *sitter.Node, parent *Node) *Node {
	if tsNode == nil {
		return nil
	}
	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartRow:  tsNode.StartPoint().Row,
		EndRow:    tsNode.EndPoint().Row,
		Parent:    parent,
		Children:  make([]*Node, 0, int(tsNode.ChildCount())),
	}
	for i := 0; i < int(tsNode.ChildCount()); i++ {
		if child := tsNode.Child(i); child != nil {
			node.Children = append(node.Children, liftNode(child, node))
		}
	}
	return node
}
