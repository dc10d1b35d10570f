//go:build cgo

package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"cix/internal/errors"
	"cix/internal/logging"
)

// TreeSitter extracts definitions and call sites using tree-sitter grammars.
// Parse creates a fresh sitter.Parser each call: the parsers are stateful,
// and this keeps Parse safe from parallel workers.
type TreeSitter struct {
	logger *logging.Logger
}

// NewTreeSitter creates the tree-sitter backed parser
func NewTreeSitter(logger *logging.Logger) (Parser, error) {
	return &TreeSitter{logger: logger.WithComponent("parser")}, nil
}

// Supports reports whether the file extension maps to a grammar
func (t *TreeSitter) Supports(path string) bool {
	_, ok := LanguageFromPath(path)
	return ok
}

// Parse extracts definitions and call sites from source bytes
func (t *TreeSitter) Parse(ctx context.Context, path string, source []byte) (*Result, error) {
	lang, ok := LanguageFromPath(path)
	if !ok {
		return nil, errors.New(errors.ParseFailure,
			fmt.Sprintf("unsupported file type: %s", path), nil)
	}

	p := sitter.NewParser()
	p.SetLanguage(grammarFor(lang))

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.New(errors.ParseFailure,
			fmt.Sprintf("failed to parse %s", path), err)
	}

	result := &Result{Path: path, Language: lang}
	w := &walker{source: source, lang: lang, result: result}
	w.walk(tree.RootNode(), "", "")
	return result, nil
}

// grammarFor returns the tree-sitter grammar for a language
func grammarFor(lang Language) *sitter.Language {
	switch lang {
	case LangGo:
		return golang.GetLanguage()
	case LangRust:
		return rust.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	default:
		return golang.GetLanguage()
	}
}

// walker does a single pass over the tree, tracking the enclosing container
// (class/impl/trait) and the enclosing definition (call attribution).
type walker struct {
	source []byte
	lang   Language
	result *Result
}

func (w *walker) walk(node *sitter.Node, container, caller string) {
	nodeType := node.Type()

	switch w.lang {
	case LangGo:
		container, caller = w.visitGo(node, nodeType, container, caller)
	case LangRust:
		container, caller = w.visitRust(node, nodeType, container, caller)
	case LangPython:
		container, caller = w.visitPython(node, nodeType, container, caller)
	case LangJavaScript, LangTypeScript, LangTSX:
		container, caller = w.visitJS(node, nodeType, container, caller)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		w.walk(child, container, caller)
	}
}

func (w *walker) visitGo(node *sitter.Node, nodeType, container, caller string) (string, string) {
	switch nodeType {
	case "function_declaration":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "function", "")
			return container, name
		}
	case "method_declaration":
		if name := w.fieldText(node, "name"); name != "" {
			recv := goReceiverType(node, w.source)
			w.emitDef(node, name, "method", recv)
			return recv, name
		}
	case "type_spec":
		if name := w.fieldText(node, "name"); name != "" {
			kind := "type"
			if typeNode := node.ChildByFieldName("type"); typeNode != nil && typeNode.Type() == "interface_type" {
				kind = "interface"
			}
			w.emitDef(node, name, kind, "")
		}
	case "call_expression":
		w.emitCall(node, caller, node.ChildByFieldName("function"))
	}
	return container, caller
}

func (w *walker) visitRust(node *sitter.Node, nodeType, container, caller string) (string, string) {
	switch nodeType {
	case "function_item":
		if name := w.fieldText(node, "name"); name != "" {
			kind := "function"
			if container != "" {
				kind = "method"
			}
			w.emitDef(node, name, kind, container)
			return container, name
		}
	case "struct_item", "enum_item":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "type", "")
		}
	case "trait_item":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "interface", "")
			return name, caller
		}
	case "impl_item":
		// impl blocks are containers, not symbols of their own
		if name := rustImplType(node, w.source); name != "" {
			return name, caller
		}
	case "call_expression":
		w.emitCall(node, caller, node.ChildByFieldName("function"))
	}
	return container, caller
}

func (w *walker) visitPython(node *sitter.Node, nodeType, container, caller string) (string, string) {
	switch nodeType {
	case "function_definition":
		if name := w.fieldText(node, "name"); name != "" {
			kind := "function"
			if container != "" {
				kind = "method"
			}
			w.emitDef(node, name, kind, container)
			return container, name
		}
	case "class_definition":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "class", "")
			return name, caller
		}
	case "call":
		w.emitCall(node, caller, node.ChildByFieldName("function"))
	}
	return container, caller
}

func (w *walker) visitJS(node *sitter.Node, nodeType, container, caller string) (string, string) {
	switch nodeType {
	case "function_declaration", "generator_function_declaration":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "function", "")
			return container, name
		}
	case "class_declaration":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "class", "")
			return name, caller
		}
	case "method_definition":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "method", container)
			return container, name
		}
	case "interface_declaration":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "interface", "")
		}
	case "type_alias_declaration":
		if name := w.fieldText(node, "name"); name != "" {
			w.emitDef(node, name, "type", "")
		}
	case "variable_declarator":
		// const f = () => {} and friends
		if value := node.ChildByFieldName("value"); value != nil {
			vt := value.Type()
			if vt == "arrow_function" || vt == "function_expression" || vt == "function" {
				if name := w.fieldText(node, "name"); name != "" {
					w.emitDef(node, name, "function", container)
					return container, name
				}
			}
		}
	case "call_expression":
		w.emitCall(node, caller, node.ChildByFieldName("function"))
	case "new_expression":
		if ctor := node.ChildByFieldName("constructor"); ctor != nil {
			w.emitCallNamed(node, caller, w.text(ctor), "new")
		}
	}
	return container, caller
}

// emitDef records a definition spanning the node
func (w *walker) emitDef(node *sitter.Node, name, kind, container string) {
	w.result.Definitions = append(w.result.Definitions, Definition{
		Name:      name,
		Kind:      kind,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Container: container,
		Signature: w.signature(node),
	})
}

// emitCall records a call site, naming the callee from the function node
func (w *walker) emitCall(node *sitter.Node, caller string, fn *sitter.Node) {
	if fn == nil {
		return
	}
	callee, kind := w.calleeName(fn)
	w.emitCallNamed(node, caller, callee, kind)
}

func (w *walker) emitCallNamed(node *sitter.Node, caller, callee, kind string) {
	// Calls outside any definition (module-level code) have no caller to
	// attach to and are dropped, as are builtin noise names.
	if caller == "" || callee == "" || SkipCallee(callee) {
		return
	}
	w.result.Calls = append(w.result.Calls, Call{
		Caller: caller,
		Callee: callee,
		Kind:   kind,
		Line:   int(node.StartPoint().Row) + 1,
	})
}

// calleeName renders the function part of a call as a stable name. Simple
// receivers are kept ("pkg.Fn", "obj.method", "mod::fn"); complex receiver
// expressions collapse to the final method name.
func (w *walker) calleeName(fn *sitter.Node) (string, string) {
	switch fn.Type() {
	case "identifier", "scoped_identifier", "type_identifier":
		return w.text(fn), "direct"

	case "selector_expression": // go: operand.field
		return w.qualified(fn, "operand", "field"), "method"

	case "field_expression": // rust: value.field
		return w.qualified(fn, "value", "field"), "method"

	case "attribute": // python: object.attribute
		return w.qualified(fn, "object", "attribute"), "method"

	case "member_expression": // js/ts: object.property
		return w.qualified(fn, "object", "property"), "method"

	case "parenthesized_expression", "generic_function":
		// (f)(x) or f::<T>(x): look through
		for i := 0; i < int(fn.ChildCount()); i++ {
			child := fn.Child(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case "identifier", "scoped_identifier", "selector_expression",
				"field_expression", "attribute", "member_expression":
				return w.calleeName(child)
			}
		}
	}
	return "", ""
}

// qualified joins receiver and member when the receiver is a plain
// identifier, otherwise returns the member alone.
func (w *walker) qualified(fn *sitter.Node, receiverField, memberField string) string {
	member := w.fieldText(fn, memberField)
	if member == "" {
		return ""
	}
	if recv := fn.ChildByFieldName(receiverField); recv != nil && recv.Type() == "identifier" {
		return w.text(recv) + "." + member
	}
	return member
}

func (w *walker) text(node *sitter.Node) string {
	return string(w.source[node.StartByte():node.EndByte()])
}

func (w *walker) fieldText(node *sitter.Node, field string) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return w.text(child)
}

// signature is the first line of the definition, capped for storage
func (w *walker) signature(node *sitter.Node) string {
	text := w.text(node)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimRight(strings.TrimSpace(text), "{")
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// goReceiverType extracts the receiver type name from a method declaration
func goReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := string(source[recv.StartByte():recv.EndByte()])
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typ := fields[len(fields)-1]
	typ = strings.TrimPrefix(typ, "*")
	if idx := strings.IndexByte(typ, '['); idx >= 0 {
		typ = typ[:idx]
	}
	return typ
}

// rustImplType extracts the implemented type name from an impl block
func rustImplType(node *sitter.Node, source []byte) string {
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		text := string(source[typeNode.StartByte():typeNode.EndByte()])
		if idx := strings.IndexByte(text, '<'); idx >= 0 {
			text = text[:idx]
		}
		return text
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == "type_identifier" {
			return string(source[child.StartByte():child.EndByte()])
		}
	}
	return ""
}
