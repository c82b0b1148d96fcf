package extract

import "strings"

// precedingComment collects the comment group directly above a
// declaration and returns it as plain text. The group is the run of
// comment siblings with no blank line between them and the
// declaration; a trailing comment on a previous statement's line is
// not part of it.
func precedingComment(n *Node, source []byte) string {
	var group []*Node
	cur := n
	for {
		prev := cur.PrevSibling()
		if prev == nil || prev.Type != "comment" {
			break
		}
		if int(prev.EndRow) < int(cur.StartRow)-1 {
			// blank line between the comment and what follows
			break
		}
		if before := prev.PrevSibling(); before != nil && before.EndRow == prev.StartRow {
			// comment sits on another statement's line
			break
		}
		group = append([]*Node{prev}, group...)
		cur = prev
	}

	if len(group) == 0 {
		return ""
	}
	var parts []string
	for _, c := range group {
		if text := cleanComment(c.Content(source)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// pythonDocstring returns the docstring of a function or class body:
// a string expression standing first in the block.
func pythonDocstring(n *Node, source []byte) string {
	block := n.ChildOfType("block")
	if block == nil {
		return ""
	}
	for _, c := range block.Children {
		if c.Type == "comment" {
			continue
		}
		if c.Type != "expression_statement" {
			return ""
		}
		str := c.ChildOfType("string")
		if str == nil {
			return ""
		}
		return cleanPythonString(str.Content(source))
	}
	return ""
}

// cleanComment strips comment markers and folds the text onto one
// line. Compiler directives are dropped.
func cleanComment(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "/*") {
		raw = strings.TrimPrefix(raw, "/**")
		raw = strings.TrimPrefix(raw, "/*")
		raw = strings.TrimSuffix(raw, "*/")
	}

	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "go:") || strings.HasPrefix(line, "+build") || strings.HasPrefix(line, "nolint") {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

// cleanPythonString strips string prefixes and quotes from a
// docstring literal and folds it onto one line.
func cleanPythonString(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}

	var parts []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}
