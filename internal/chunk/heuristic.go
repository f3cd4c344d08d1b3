package chunk

import "regexp"

// blockHint matches a line that plausibly opens a new structural block,
// used both as the heuristic chunker's cut-point hint and inside the
// shared line-window split used to break up oversize chunks.
var blockHint = regexp.MustCompile(`^(?:func |fn |def |class |public |private |protected |interface |struct |impl |module )`)

// Heuristic is the line-based sliding-window fallback chunker used when a
// structural chunker is unavailable or fails to find any boundaries.
var Heuristic Chunker = ChunkerFunc(heuristicChunk)

func heuristicChunk(source, relPath, language string, cfg Config) []Chunk {
	return lineWindowChunks(splitLines(source), relPath, language, cfg, "")
}

// lineWindowChunks implements the shared line-window split procedure
// (spec §4.3): used directly by the heuristic chunker, and reused to
// split any oversize block emitted by the structural chunkers. parentName
// is empty for a top-level heuristic run; when non-empty, sub-chunks are
// named "<parentName>::part<k>". Emitted line numbers are relative to
// lines; splitOversizeBlock shifts them to file-absolute line numbers.
// The result is never nil: an empty slice is returned when no window
// meets min_chars.
func lineWindowChunks(lines []string, relPath, language string, cfg Config, parentName string) []Chunk {
	n := len(lines)
	maxLines := cfg.MaxChars / 80
	if maxLines < 10 {
		maxLines = 10
	}

	chunks := []Chunk{}
	part := 1
	i := 0
	for i < n {
		windowEnd := i + maxLines
		if windowEnd > n {
			windowEnd = n
		}
		breakAt := windowEnd

		searchStart := i + maxLines/2
		if searchStart < i {
			searchStart = i
		}
		for j := windowEnd - 1; j >= searchStart; j-- {
			if j < 0 || j >= n {
				continue
			}
			if blockHint.MatchString(lines[j]) {
				breakAt = j
				break
			}
		}
		if breakAt <= i {
			breakAt = windowEnd
		}

		text := joinLines(lines, i+1, breakAt)
		if meetsMinChars(text, cfg) {
			symbol := ""
			if parentName != "" {
				symbol = partName(parentName, part)
				part++
			}
			chunks = append(chunks, Chunk{
				FilePath:   relPath,
				Language:   language,
				StartLine:  i + 1,
				EndLine:    breakAt,
				CodeText:   text,
				SymbolName: symbol,
			})
		}

		nextI := breakAt - cfg.OverlapLines
		if nextI <= i {
			nextI = i + 1
		}
		i = nextI
	}
	return chunks
}

func partName(parent string, part int) string {
	return parent + "::part" + itoa(part)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// splitOversizeBlock applies the line-window procedure to a single
// oversize block (its text already isolated from the file), producing
// sub-chunks named "<parentName>::part<k>" with file-absolute line
// numbers derived from startLine (1-indexed, the block's first line in
// the original file).
func splitOversizeBlock(blockText string, startLine int, relPath, language string, cfg Config, parentName string) []Chunk {
	lines := splitLines(blockText)
	subs := lineWindowChunks(lines, relPath, language, cfg, parentName)
	for i := range subs {
		subs[i].StartLine += startLine - 1
		subs[i].EndLine += startLine - 1
	}
	return subs
}
