package scan

import (
	"path/filepath"
	"strings"
)

// extensionMap mirrors the original implementation's closed extension set.
// Config/doc/markup extensions are present so DetectLanguage can recognise
// them, but IsCodeLanguage reports false for them so the scanner excludes
// them from indexing. The original's separate ".R" entry is omitted: this
// map is only ever consulted through DetectLanguage's lower-cased lookup,
// so ".R" and ".r" are already the same key.
var extensionMap = map[string]string{
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".go":    "go",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".scala": "scala",
	".lua":   "lua",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
	".r":     "r",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".xml":   "xml",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
}

// codeLanguages is the closed set of languages eligible for indexing.
var codeLanguages = map[string]bool{
	"python": true, "javascript": true, "typescript": true, "java": true,
	"go": true, "rust": true, "c": true, "cpp": true, "csharp": true,
	"ruby": true, "php": true, "swift": true, "kotlin": true, "scala": true,
	"lua": true, "shell": true, "r": true,
}

// DetectLanguage maps a file path's extension to a language tag. It
// returns ("", false) for unrecognised extensions.
func DetectLanguage(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extensionMap[ext]
	return lang, ok
}

// IsCodeLanguage reports whether lang is one of the code languages this
// engine indexes (as opposed to config/doc/markup tags).
func IsCodeLanguage(lang string) bool {
	return codeLanguages[lang]
}
