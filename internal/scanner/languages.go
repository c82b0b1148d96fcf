package scanner

import (
	"path/filepath"
	"strings"
)

// languageMap maps file extensions to the languages the docstring
// extractor can parse.
var languageMap = map[string]string{
	".go":  "go",
	".py":  "python",
	".pyw": "python",
	".pyi": "python",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
}

// DetectLanguage maps a file path to a parser language. Empty when no
// parser covers the file.
func DetectLanguage(path string) string {
	return languageMap[strings.ToLower(filepath.Ext(path))]
}

// Languages lists every language the scanner recognizes.
func Languages() []string {
	return []string{"go", "javascript", "python", "typescript"}
}
