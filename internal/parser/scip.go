package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"cix/internal/errors"
	"cix/internal/logging"
)

// defaultBodyLines bounds a definition's body when the indexer that
// produced the SCIP file did not populate enclosing ranges (scip-go
// does not). Conservative so calls inside long functions still attribute.
const defaultBodyLines = 500

// SCIPLoader converts a pre-built SCIP protobuf index into per-file parse
// results. It is the parse source for non-cgo builds or for repos that
// already run a SCIP indexer in CI.
type SCIPLoader struct {
	logger *logging.Logger
}

// NewSCIPLoader creates a SCIP index loader
func NewSCIPLoader(logger *logging.Logger) *SCIPLoader {
	return &SCIPLoader{logger: logger.WithComponent("scip")}
}

// Load reads the index at path and returns one Result per document
func (l *SCIPLoader) Load(ctx context.Context, path string) ([]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.FileNotIndexed,
			fmt.Sprintf("cannot read SCIP index at %s", path), err)
	}

	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, errors.New(errors.ParseFailure,
			fmt.Sprintf("invalid SCIP index at %s", path), err)
	}

	results := make([]Result, 0, len(index.Documents))
	for _, doc := range index.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, l.convertDocument(doc))
	}

	l.logger.Info("Loaded SCIP index", map[string]interface{}{
		"path":      path,
		"documents": len(results),
	})
	return results, nil
}

// docDef is a definition occurrence with its resolved body span
type docDef struct {
	name      string
	kind      string
	container string
	startLine int
	endLine   int
	bodyEnd   int
}

func (l *SCIPLoader) convertDocument(doc *scippb.Document) Result {
	lang, _ := LanguageFromPath(doc.RelativePath)
	result := Result{Path: doc.RelativePath, Language: lang}

	kinds := make(map[string]scippb.SymbolInformation_Kind, len(doc.Symbols))
	for _, info := range doc.Symbols {
		kinds[info.Symbol] = info.Kind
	}

	var defs []docDef
	for _, occ := range doc.Occurrences {
		if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) == 0 {
			continue
		}
		name, container, callable := symbolNameParts(occ.Symbol)
		if name == "" {
			continue
		}

		kind := mapSCIPKind(kinds[occ.Symbol], container, callable)
		if kind == "" {
			continue
		}

		startLine := int(occ.Range[0]) + 1
		endLine := startLine
		bodyEnd := startLine
		if len(occ.EnclosingRange) >= 3 {
			endLine = int(occ.EnclosingRange[2]) + 1
			bodyEnd = endLine
		} else if callable {
			bodyEnd = startLine + defaultBodyLines
		}

		defs = append(defs, docDef{
			name:      name,
			kind:      kind,
			container: container,
			startLine: startLine,
			endLine:   endLine,
			bodyEnd:   bodyEnd,
		})
		result.Definitions = append(result.Definitions, Definition{
			Name:      name,
			Kind:      kind,
			StartLine: startLine,
			EndLine:   endLine,
			Container: container,
		})
	}

	// Reference occurrences inside a callable definition's body become
	// call sites attributed to that definition.
	for _, occ := range doc.Occurrences {
		if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) != 0 {
			continue
		}
		name, _, callable := symbolNameParts(occ.Symbol)
		if name == "" || !callable || SkipCallee(name) {
			continue
		}

		line := int(occ.Range[0]) + 1
		caller := enclosingDef(defs, line)
		if caller == "" {
			continue
		}
		result.Calls = append(result.Calls, Call{
			Caller: caller,
			Callee: name,
			Kind:   "direct",
			Line:   line,
		})
	}

	return result
}

// enclosingDef finds the innermost callable definition containing a line
func enclosingDef(defs []docDef, line int) string {
	best := ""
	bestStart := -1
	for _, d := range defs {
		if d.kind != "function" && d.kind != "method" {
			continue
		}
		if line < d.startLine || line > d.bodyEnd {
			continue
		}
		if d.startLine > bestStart {
			bestStart = d.startLine
			best = d.name
		}
	}
	return best
}

// symbolNameParts parses a SCIP symbol string into a display name, its
// containing type (if any), and whether the symbol is callable.
func symbolNameParts(symbol string) (name, container string, callable bool) {
	parsed, err := scippb.ParseSymbol(symbol)
	if err != nil || len(parsed.Descriptors) == 0 {
		return "", "", false
	}

	last := parsed.Descriptors[len(parsed.Descriptors)-1]
	name = strings.TrimSuffix(last.Name, "().")
	callable = last.Suffix == scippb.Descriptor_Method

	if len(parsed.Descriptors) >= 2 {
		prev := parsed.Descriptors[len(parsed.Descriptors)-2]
		if prev.Suffix == scippb.Descriptor_Type {
			container = prev.Name
		}
	}
	return name, container, callable
}

// mapSCIPKind maps SCIP symbol kinds onto index kinds. When the producing
// indexer leaves Kind unset, the descriptor suffix decides.
func mapSCIPKind(kind scippb.SymbolInformation_Kind, container string, callable bool) string {
	switch kind {
	case scippb.SymbolInformation_Function:
		return "function"
	case scippb.SymbolInformation_Method, scippb.SymbolInformation_Constructor:
		return "method"
	case scippb.SymbolInformation_Class:
		return "class"
	case scippb.SymbolInformation_Interface, scippb.SymbolInformation_Trait:
		return "interface"
	case scippb.SymbolInformation_Struct, scippb.SymbolInformation_Enum,
		scippb.SymbolInformation_Type, scippb.SymbolInformation_TypeAlias:
		return "type"
	}

	if callable {
		if container != "" {
			return "method"
		}
		return "function"
	}
	return ""
}
