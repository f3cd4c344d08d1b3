package chunk

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// topLevelDefTypes are the tree-sitter node types this chunker treats as
// "top-level def/class" the way ast.parse's FunctionDef/AsyncFunctionDef/
// ClassDef would in the original Python implementation.
var topLevelDefTypes = map[string]bool{
	"function_definition": true,
	"class_definition":     true,
	"decorated_definition": true,
}

// Python chunks Python source using tree-sitter's Python grammar as the
// AST substitute for ast.parse. On a parse failure it falls back to the
// heuristic chunker, matching original_source/src/hermes/chunking/python_chunker.py.
var Python Chunker = ChunkerFunc(pythonChunk)

func pythonChunk(source, relPath, language string, cfg Config) []Chunk {
	srcBytes := []byte(source)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, srcBytes)
	if err != nil || tree == nil {
		return heuristicChunk(source, relPath, language, cfg)
	}
	root := tree.RootNode()
	if root == nil || root.HasError() {
		return heuristicChunk(source, relPath, language, cfg)
	}

	lines := splitLines(source)

	var defs []*sitter.Node
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child != nil && topLevelDefTypes[child.Type()] {
			defs = append(defs, child)
		}
	}
	if len(defs) == 0 {
		return heuristicChunk(source, relPath, language, cfg)
	}

	var chunks []Chunk

	firstDefLine := int(defs[0].StartPoint().Row) + 1
	if firstDefLine > 1 {
		preamble := joinLines(lines, 1, firstDefLine-1)
		if meetsMinChars(preamble, cfg) {
			chunks = append(chunks, Chunk{
				FilePath:   relPath,
				Language:   language,
				StartLine:  1,
				EndLine:    firstDefLine - 1,
				CodeText:   preamble,
				SymbolName: "<module>",
			})
		}
	}

	for _, def := range defs {
		startLine := int(def.StartPoint().Row) + 1
		endLine := int(def.EndPoint().Row) + 1
		text := joinLines(lines, startLine, endLine)
		name := defSymbolName(def, srcBytes)

		if len(text) > cfg.MaxChars {
			chunks = append(chunks, splitOversizeBlock(text, startLine, relPath, language, cfg, name)...)
			continue
		}

		if !meetsMinChars(text, cfg) {
			continue
		}
		chunks = append(chunks, Chunk{
			FilePath:   relPath,
			Language:   language,
			StartLine:  startLine,
			EndLine:    endLine,
			CodeText:   text,
			SymbolName: name,
		})
	}

	return chunks
}

// defSymbolName extracts the identifier name from a function/class
// definition node (descending through decorated_definition wrappers).
func defSymbolName(node *sitter.Node, src []byte) string {
	target := node
	if target.Type() == "decorated_definition" {
		for i := 0; i < int(target.ChildCount()); i++ {
			c := target.Child(i)
			if c != nil && (c.Type() == "function_definition" || c.Type() == "class_definition") {
				target = c
				break
			}
		}
	}
	nameNode := target.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return nameNode.Content(src)
}
