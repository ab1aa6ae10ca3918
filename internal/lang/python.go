package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/codescribe/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:              "python",
		Extensions:        []string{".py"},
		lang:              python.GetLanguage(),
		FindMethodClass:   pythonFindMethodClass,
		InsideFunction:    pythonInsideFunction,
		ExtractSignature:  pythonExtractSignature,
		ImportTargets:     pythonImportTargets,
		DocstringSpan:     pythonDocstringSpan,
		ModuleDocInsertAt: pythonModuleDocInsertAt,
	}
}

func pythonFindMethodClass(funcNode *sitter.Node, source []byte) string {
	classNode := pythonFindEnclosingClass(funcNode)
	if classNode == nil {
		return ""
	}
	for i := 0; i < int(classNode.ChildCount()); i++ {
		child := classNode.Child(i)
		if child.Type() == "identifier" {
			return NodeText(child, source)
		}
	}
	return ""
}

func pythonFindEnclosingClass(funcNode *sitter.Node) *sitter.Node {
	parent := funcNode.Parent()
	if parent == nil {
		return nil
	}

	// Direct: def -> block -> class_definition
	if parent.Type() == "block" && parent.Parent() != nil && parent.Parent().Type() == "class_definition" {
		return parent.Parent()
	}

	// Decorated: def -> decorated_definition -> block -> class_definition
	if parent.Type() == "decorated_definition" {
		gp := parent.Parent()
		if gp != nil && gp.Type() == "block" && gp.Parent() != nil && gp.Parent().Type() == "class_definition" {
			return gp.Parent()
		}
	}

	return nil
}

// pythonInsideFunction reports whether a definition node lives inside a
// function body. Methods directly under a class are not "inside" for this
// purpose; a def nested in another def is.
func pythonInsideFunction(node *sitter.Node) bool {
	current := node.Parent()
	for current != nil {
		if current.Type() == "function_definition" {
			return true
		}
		current = current.Parent()
	}
	return false
}

func pythonExtractSignature(defNode *sitter.Node, kind model.SymbolKind, source []byte) string {
	if kind == model.Class {
		return pythonExtractClassSignature(defNode, source)
	}
	return pythonExtractFunctionSignature(defNode, source)
}

func pythonExtractClassSignature(node *sitter.Node, source []byte) string {
	var name, args string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			name = NodeText(child, source)
		case "argument_list":
			args = NodeText(child, source)
		}
	}
	if args != "" {
		return name + args
	}
	return name
}

func pythonExtractFunctionSignature(node *sitter.Node, source []byte) string {
	var name, params, returnType string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			name = NodeText(child, source)
		case "parameters":
			params = CollapseWhitespace(NodeText(child, source))
		case "type":
			returnType = NodeText(child, source)
		}
	}
	sig := name + params
	if returnType != "" {
		sig += " -> " + returnType
	}
	return sig
}

// pythonImportTargets extracts module references from import_statement and
// import_from_statement nodes.
//
// "import a.b" yields {a.b, 0}. "from pkg.mod import x" yields {pkg.mod, 0}.
// "from ..pkg import x" yields {pkg, 2}. "from . import mod" has an empty
// module part, so each imported name is returned instead ({mod, 1}).
func pythonImportTargets(node *sitter.Node, source []byte) []ImportRef {
	switch node.Type() {
	case "import_statement":
		var refs []ImportRef
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				refs = append(refs, ImportRef{Module: NodeText(child, source)})
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					refs = append(refs, ImportRef{Module: NodeText(name, source)})
				}
			}
		}
		return refs

	case "import_from_statement":
		var dots int
		var module string

		moduleNode := node.ChildByFieldName("module_name")
		if moduleNode == nil {
			return nil
		}
		switch moduleNode.Type() {
		case "dotted_name":
			module = NodeText(moduleNode, source)
		case "relative_import":
			for i := 0; i < int(moduleNode.ChildCount()); i++ {
				child := moduleNode.Child(i)
				switch child.Type() {
				case "import_prefix":
					dots = len(NodeText(child, source))
				case "dotted_name":
					module = NodeText(child, source)
				}
			}
		}

		if module != "" || dots > 0 {
			if module != "" {
				return []ImportRef{{Module: module, Dots: dots}}
			}
			// "from . import a, b": the imported names are the modules.
			var refs []ImportRef
			seenImport := false
			for i := 0; i < int(node.ChildCount()); i++ {
				child := node.Child(i)
				if child.Type() == "import" {
					seenImport = true
					continue
				}
				if !seenImport {
					continue
				}
				switch child.Type() {
				case "dotted_name":
					refs = append(refs, ImportRef{Module: NodeText(child, source), Dots: dots})
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						refs = append(refs, ImportRef{Module: NodeText(name, source), Dots: dots})
					}
				}
			}
			return refs
		}
	}
	return nil
}

// pythonDocstringSpan returns the span of a docstring opening a block:
// an expression_statement whose sole content is a string literal.
func pythonDocstringSpan(body *sitter.Node) (int, int) {
	if body == nil || body.NamedChildCount() == 0 {
		return -1, -1
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return -1, -1
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return -1, -1
	}
	return int(str.StartByte()), int(str.EndByte())
}

// pythonModuleDocInsertAt returns the offset at which a new module docstring
// should be inserted: after a shebang and/or encoding comment when present.
func pythonModuleDocInsertAt(source []byte) int {
	offset := 0
	for pass := 0; pass < 2; pass++ {
		rest := source[offset:]
		nl := strings.IndexByte(string(rest), '\n')
		if nl < 0 {
			break
		}
		line := string(rest[:nl])
		if strings.HasPrefix(line, "#!") || (strings.HasPrefix(line, "#") && strings.Contains(line, "coding")) {
			offset += nl + 1
			continue
		}
		break
	}
	return offset
}
