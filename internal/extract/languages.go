package extract

// declTypes lists, per language, the AST node types that can carry
// documentation worth harvesting.
var declTypes = map[string]map[string]bool{
	"go": {
		"function_declaration": true,
		"method_declaration":   true,
		"type_declaration":     true,
	},
	"python": {
		"function_definition": true,
		"class_definition":    true,
	},
	"javascript": {
		"function_declaration": true,
		"method_definition":    true,
		"class_declaration":    true,
		"lexical_declaration":  true,
		"variable_declaration": true,
	},
	"typescript": {
		"function_declaration":  true,
		"method_definition":     true,
		"class_declaration":     true,
		"interface_declaration": true,
		"lexical_declaration":   true,
		"variable_declaration":  true,
	},
}

// nameOf resolves the declared name for a documentation-carrying
// node. Empty when the node has no usable name.
func nameOf(n *Node, source []byte, language string) string {
	switch language {
	case "go":
		return goName(n, source)
	case "python":
		if id := n.ChildOfType("identifier"); id != nil {
			return id.Content(source)
		}
	case "javascript", "typescript":
		return jsName(n, source)
	}
	return ""
}

func goName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		if id := n.ChildOfType("identifier"); id != nil {
			return id.Content(source)
		}
	case "method_declaration":
		// Method names are field_identifier nodes, not identifier
		if id := n.ChildOfType("field_identifier"); id != nil {
			return id.Content(source)
		}
	case "type_declaration":
		if spec := n.ChildOfType("type_spec"); spec != nil {
			if id := spec.ChildOfType("type_identifier"); id != nil {
				return id.Content(source)
			}
		}
	}
	return ""
}

func jsName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		if id := n.ChildOfType("identifier"); id != nil {
			return id.Content(source)
		}
	case "method_definition":
		if id := n.ChildOfType("property_identifier"); id != nil {
			return id.Content(source)
		}
	case "class_declaration", "interface_declaration":
		// TypeScript names classes with type_identifier, JavaScript
		// with identifier
		if id := n.ChildOfType("type_identifier"); id != nil {
			return id.Content(source)
		}
		if id := n.ChildOfType("identifier"); id != nil {
			return id.Content(source)
		}
	}
	return ""
}

// functionDeclaratorName handles const f = () => {} and
// const f = function() {}. Returns "" when the declaration does not
// bind a function.
func functionDeclaratorName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type != "variable_declarator" {
			continue
		}
		var name string
		var isFunc bool
		for _, g := range child.Children {
			switch g.Type {
			case "identifier":
				name = g.Content(source)
			case "arrow_function", "function", "function_expression":
				isFunc = true
			}
		}
		if name != "" && isFunc {
			return name
		}
	}
	return ""
}
