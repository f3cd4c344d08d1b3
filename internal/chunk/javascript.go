package chunk

import "regexp"

var jsBlockStart = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:(?:async\s+)?function\s+\w+|class\s+\w+|const\s+\w+\s*=\s*(?:async\s*)?\()`)

var jsSymbolName = regexp.MustCompile(`(function|class|const|let|var)\s+(\w+)`)

// JavaScript chunks JS/TS source by regex-scanning for top-level block
// starts; it never parses an AST. If fewer than two boundaries are found,
// it falls back to the heuristic chunker.
var JavaScript Chunker = ChunkerFunc(javascriptChunk)

func javascriptChunk(source, relPath, language string, cfg Config) []Chunk {
	lines := splitLines(source)

	var boundaries []int
	for i, line := range lines {
		if jsBlockStart.MatchString(line) {
			boundaries = append(boundaries, i)
		}
	}

	if len(boundaries) < 2 {
		return heuristicChunk(source, relPath, language, cfg)
	}

	var chunks []Chunk
	for idx, b := range boundaries {
		end := len(lines) - 1
		if idx+1 < len(boundaries) {
			end = boundaries[idx+1] - 1
		}
		startLine, endLine := b+1, end+1
		text := joinLines(lines, startLine, endLine)
		if !meetsMinChars(text, cfg) {
			continue
		}

		symbol := ""
		if m := jsSymbolName.FindStringSubmatch(lines[b]); m != nil {
			symbol = m[2]
		}

		if len(text) > cfg.MaxChars {
			name := symbol
			if name == "" {
				name = "<anonymous>"
			}
			chunks = append(chunks, splitOversizeBlock(text, startLine, relPath, language, cfg, name)...)
			continue
		}

		chunks = append(chunks, Chunk{
			FilePath:   relPath,
			Language:   language,
			StartLine:  startLine,
			EndLine:    endLine,
			CodeText:   text,
			SymbolName: symbol,
		})
	}
	return chunks
}
